package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fetcharr/internal/semaphore"
)

// claimInterval is how often idle workers look for claimable jobs.
const claimInterval = 200 * time.Millisecond

// QueueLimitFunc resolves the concurrency ceiling for a queue name.
type QueueLimitFunc func(queue string) int

// Runtime owns the job table and the worker pool. Jobs are executed
// at-most-once: a handler error is logged and the job dropped.
type Runtime struct {
	executor *Executor
	limits   QueueLimitFunc
	logger   *logrus.Logger
	workers  int

	mu       sync.Mutex
	jobs     map[string]*Job
	handlers map[string]HandlerFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type RuntimeConfig struct {
	Workers     int
	Slots       semaphore.Store
	QueueLimits QueueLimitFunc
	Logger      *logrus.Logger
}

func NewRuntime(cfg RuntimeConfig) *Runtime {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.QueueLimits == nil {
		cfg.QueueLimits = func(string) int { return 1 }
	}
	return &Runtime{
		executor: NewExecutor(cfg.Slots, cfg.Logger),
		limits:   cfg.QueueLimits,
		logger:   cfg.Logger,
		workers:  cfg.Workers,
		jobs:     make(map[string]*Job),
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a command name to its handler. Submissions for unknown
// commands are rejected.
func (r *Runtime) Register(command string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[command] = h
}

// Submit places a job on its queue, immediately or at spec.RunAt.
func (r *Runtime) Submit(spec Spec) (string, error) {
	if spec.Queue == "" {
		return "", fmt.Errorf("submit %s: queue is required", spec.Command)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[spec.Command]; !ok {
		return "", fmt.Errorf("submit: no handler registered for %q", spec.Command)
	}

	job := &Job{
		ID:          uuid.NewString(),
		Queue:       spec.Queue,
		Command:     spec.Command,
		Args:        spec.Args,
		State:       StateReady,
		RunAt:       spec.RunAt,
		EnqueuedAt:  time.Now(),
		Expiration:  spec.Expiration,
		Concurrency: spec.Concurrency,
	}
	if !spec.RunAt.IsZero() && spec.RunAt.After(time.Now()) {
		job.State = StateScheduled
	}
	r.jobs[job.ID] = job
	return job.ID, nil
}

// List snapshots jobs in the given state, optionally filtered by command.
// An empty command matches everything.
func (r *Runtime) List(state State, command string) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Job
	for _, job := range r.jobs {
		if job.State != state {
			continue
		}
		if command != "" && job.Command != command {
			continue
		}
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnqueuedAt.Before(out[j].EnqueuedAt) })
	return out
}

// Cancel removes a scheduled or ready job. Running jobs are not
// interruptible and report false.
func (r *Runtime) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.State == StateRunning {
		return false
	}
	delete(r.jobs, id)
	return true
}

// Start boots the worker pool.
func (r *Runtime) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.workerLoop()
	}
	r.logger.Infof("job runtime started with %d workers", r.workers)
}

// Stop cancels the pool and waits for in-flight jobs.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("job runtime stopped")
}

func (r *Runtime) workerLoop() {
	defer r.wg.Done()
	for {
		job := r.claim()
		if job == nil {
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(claimInterval):
			}
			continue
		}
		r.execute(job)
	}
}

// claim promotes due scheduled jobs, expires stale ready ones, and takes the
// oldest claimable job.
func (r *Runtime) claim() *Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var candidate *Job
	for _, job := range r.jobs {
		switch job.State {
		case StateScheduled:
			if !job.RunAt.After(now) {
				job.State = StateReady
			} else {
				continue
			}
		case StateRunning:
			continue
		}
		if job.Expiration > 0 && now.Sub(job.EnqueuedAt) > job.Expiration {
			r.logger.WithFields(logrus.Fields{"job_id": job.ID, "command": job.Command}).
				Warn("dropping expired queue item")
			delete(r.jobs, job.ID)
			continue
		}
		if candidate == nil || job.EnqueuedAt.Before(candidate.EnqueuedAt) {
			candidate = job
		}
	}
	if candidate != nil {
		candidate.State = StateRunning
	}
	return candidate
}

func (r *Runtime) execute(job *Job) {
	defer func() {
		r.mu.Lock()
		delete(r.jobs, job.ID)
		r.mu.Unlock()
	}()

	r.mu.Lock()
	handler := r.handlers[job.Command]
	r.mu.Unlock()

	entry := r.logger.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"queue":   job.Queue,
		"command": job.Command,
	})

	// A submission-level concurrency wins over the static queue config so
	// the admission limit matches whatever the dispatcher resolved.
	limit := job.Concurrency
	if limit <= 0 {
		limit = r.limits(job.Queue)
	}

	err := r.executor.Run(r.ctx, JobInfo{ID: job.ID, Queue: job.Queue}, limit, func(ctx context.Context) error {
		return handler(ctx, job.Args)
	})
	if err != nil {
		entry.WithError(err).Error("job failed")
		return
	}
	entry.Debug("job finished")
}
