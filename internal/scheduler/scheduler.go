// Package scheduler evaluates the declarative task template on a fixed poll
// interval and decides what work lands on which queue. It keeps itself alive
// by scheduling its own next tick through the job runtime.
package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fetcharr/internal/config"
	"fetcharr/internal/jobs"
	"fetcharr/internal/semaphore"
)

// TickCommand is the scheduler's own job; at most one instance may be
// pending or running at any time.
const TickCommand = "scheduler:tick"

// SchedulerQueue is the dedicated lane the tick runs on. Its concurrency is
// pinned to 1 so ticks cannot overlap within one daemon.
const SchedulerQueue = "scheduler"

const defaultPollInterval = 60 * time.Second

// continuousMarker is appended to the dispatched command of continuous
// tasks so handlers can tell re-dispatch from a one-shot run.
const continuousMarker = "--continuous"

// JobRuntime is the slice of the job runtime the scheduler needs.
type JobRuntime interface {
	Submit(spec jobs.Spec) (string, error)
	List(state jobs.State, command string) []jobs.Job
	Cancel(id string) bool
}

type Scheduler struct {
	templatePath string
	pollInterval time.Duration
	runtime      JobRuntime
	lastRuns     LastRunStore
	slots        semaphore.Store
	resolve      func(prefix string) config.QueueSettings
	logger       *logrus.Logger
	now          func() time.Time
}

type Config struct {
	TemplatePath string
	PollInterval time.Duration
	Runtime      JobRuntime
	LastRuns     LastRunStore
	Slots        semaphore.Store
	Resolve      func(prefix string) config.QueueSettings
	Logger       *logrus.Logger
}

func New(cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Scheduler{
		templatePath: cfg.TemplatePath,
		pollInterval: cfg.PollInterval,
		runtime:      cfg.Runtime,
		lastRuns:     cfg.LastRuns,
		slots:        cfg.Slots,
		resolve:      cfg.Resolve,
		logger:       cfg.Logger,
		now:          time.Now,
	}
}

// Tick is the scheduler's job handler: run one pass over the template, then
// reschedule. Task errors never prevent the reschedule; the scheduler must
// outlive any bad tick.
func (s *Scheduler) Tick(ctx context.Context, _ []string) error {
	tickErr := s.runTasks(ctx)

	if _, err := s.Reschedule(ctx); err != nil {
		s.logger.WithError(err).Error("scheduler reschedule failed")
	}
	return tickErr
}

func (s *Scheduler) runTasks(ctx context.Context) error {
	tpl, err := LoadTemplate(s.templatePath)
	if err != nil {
		return err
	}

	now := s.now()
	for _, task := range tpl.Tasks {
		entry := s.logger.WithField("task", task.Name)
		if task.Continuous {
			if err := s.dispatchContinuous(ctx, task); err != nil {
				entry.WithError(err).Error("continuous task dispatch failed")
			}
			continue
		}
		if err := s.dispatchPeriodic(ctx, task, now); err != nil {
			entry.WithError(err).Error("periodic task dispatch failed")
		}
	}
	return nil
}

func (s *Scheduler) dispatchPeriodic(ctx context.Context, task Task, now time.Time) error {
	if task.Every <= 0 {
		return nil
	}

	last, err := s.lastRuns.Get(ctx, task.Name)
	if err != nil {
		return err
	}
	if !now.After(last.Add(task.Every)) {
		return nil
	}

	settings := s.resolveDispatch(task)
	if _, err := s.runtime.Submit(jobs.Spec{
		Queue:       settings.Queue,
		Command:     task.Command[0],
		Args:        task.Command[1:],
		Expiration:  settings.Expiration,
		Concurrency: settings.Concurrency,
	}); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{"task": task.Name, "queue": settings.Queue}).
		Debug("periodic task dispatched")
	return s.lastRuns.Set(ctx, task.Name, now)
}

func (s *Scheduler) dispatchContinuous(ctx context.Context, task Task) error {
	settings := s.resolveDispatch(task)

	// Only top up when the queue has spare concurrency; the running
	// instances count against the same slots the new one would take.
	count, err := s.slots.Count(ctx, settings.Queue)
	if err != nil {
		return err
	}
	if count >= settings.Concurrency {
		return nil
	}

	// The dispatched job carries the merged concurrency so admission
	// control admits as wide as this gate tops up.
	args := append(append([]string{}, task.Command[1:]...), continuousMarker)
	if _, err := s.runtime.Submit(jobs.Spec{
		Queue:       settings.Queue,
		Command:     task.Command[0],
		Args:        args,
		Expiration:  settings.Expiration,
		Concurrency: settings.Concurrency,
	}); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{"task": task.Name, "queue": settings.Queue}).
		Debug("continuous task dispatched")
	return nil
}

// resolveDispatch merges per-task overrides over the per-command-prefix
// configuration, which itself falls back to hard defaults.
func (s *Scheduler) resolveDispatch(task Task) config.QueueSettings {
	settings := s.resolve(commandPrefix(task.Command[0]))
	if task.Queue != "" {
		settings.Queue = task.Queue
	}
	if task.MaxConcurrency > 0 {
		settings.Concurrency = task.MaxConcurrency
	}
	if task.Expiration > 0 {
		settings.Expiration = task.Expiration
	}
	return settings
}

// Reschedule ensures exactly one future tick exists and returns its job id.
// When a future instance is already scheduled it is returned unchanged; a
// ready or running instance (other than the calling one) also counts, since
// it will reschedule itself when it finishes. Otherwise stale scheduled
// entries are cancelled and one new tick goes in at now+poll interval.
//
// The three reads are not one atomic snapshot; overlapping daemons can in
// theory double-schedule. The scheduler queue's concurrency of 1 keeps a
// duplicate tick from running concurrently.
func (s *Scheduler) Reschedule(ctx context.Context) (string, error) {
	now := s.now()
	self, _ := jobs.FromContext(ctx)

	var stale []string
	for _, job := range s.runtime.List(jobs.StateScheduled, TickCommand) {
		if job.RunAt.After(now) {
			return job.ID, nil
		}
		stale = append(stale, job.ID)
	}
	for _, id := range stale {
		s.runtime.Cancel(id)
	}

	if ready := s.runtime.List(jobs.StateReady, TickCommand); len(ready) > 0 {
		return ready[0].ID, nil
	}
	for _, job := range s.runtime.List(jobs.StateRunning, TickCommand) {
		if job.ID != self.ID {
			return job.ID, nil
		}
	}

	settings := s.resolve(commandPrefix(TickCommand))
	return s.runtime.Submit(jobs.Spec{
		Queue:       SchedulerQueue,
		Command:     TickCommand,
		RunAt:       now.Add(s.pollInterval),
		Expiration:  settings.Expiration,
		Concurrency: 1,
	})
}

func commandPrefix(command string) string {
	if i := strings.Index(command, ":"); i > 0 {
		return command[:i]
	}
	return command
}
