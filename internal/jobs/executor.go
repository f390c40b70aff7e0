package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fetcharr/internal/semaphore"
)

// admissionInterval is how often a blocked worker re-attempts to take a
// queue slot. There is no admission timeout: a worker waits as long as it
// takes for capacity to free up.
const admissionInterval = time.Second

// Executor gates job execution on the per-queue semaphore. The slot is
// released on every exit path, panics included.
type Executor struct {
	slots  semaphore.Store
	logger *logrus.Logger
}

func NewExecutor(slots semaphore.Store, logger *logrus.Logger) *Executor {
	return &Executor{slots: slots, logger: logger}
}

// Run blocks until a slot on queue is acquired (polling once per second),
// establishes the job's execution context, and runs work exactly once.
// Errors from work propagate unchanged; the executor itself never retries
// them.
func (e *Executor) Run(ctx context.Context, info JobInfo, limit int, work func(ctx context.Context) error) (err error) {
	entry := e.logger.WithFields(logrus.Fields{"job_id": info.ID, "queue": info.Queue})

	for {
		ok, acqErr := e.slots.Acquire(ctx, info.Queue, limit)
		if acqErr != nil {
			// Store hiccups are treated like a full queue: wait politely.
			entry.WithError(acqErr).Warn("slot acquire failed, retrying")
		} else if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(admissionInterval):
		}
	}

	if limit > 0 {
		defer func() {
			if _, relErr := e.slots.Release(context.WithoutCancel(ctx), info.Queue); relErr != nil {
				entry.WithError(relErr).Error("slot release failed")
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return work(WithJob(ctx, info))
}
