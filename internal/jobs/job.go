// Package jobs is the job runtime: a multi-worker pool pulling work from
// named queues, with future scheduling, cancellation, per-queue admission
// control and at-most-once execution (a failed job is logged and dropped,
// never retried by the runtime).
package jobs

import (
	"context"
	"time"
)

// State is the runtime-visible lifecycle of a job.
type State int

const (
	StateScheduled State = iota // waiting for its run-at time
	StateReady                  // eligible to be claimed by a worker
	StateRunning                // claimed by a worker (including admission wait)
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// HandlerFunc executes one job. The context carries JobInfo and is cancelled
// on runtime shutdown.
type HandlerFunc func(ctx context.Context, args []string) error

// Spec describes a job submission. A zero RunAt means "as soon as a worker
// is free"; a zero Expiration means the queue item never goes stale. A
// positive Concurrency overrides the runtime's configured limit for this
// job's queue, so dispatchers can widen or narrow admission per submission.
type Spec struct {
	Queue       string
	Command     string
	Args        []string
	RunAt       time.Time
	Expiration  time.Duration
	Concurrency int
}

// Job is a snapshot of one queued or running job.
type Job struct {
	ID          string
	Queue       string
	Command     string
	Args        []string
	State       State
	RunAt       time.Time
	EnqueuedAt  time.Time
	Expiration  time.Duration
	Concurrency int
}
