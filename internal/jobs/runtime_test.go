package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fetcharr/internal/semaphore"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	return NewRuntime(RuntimeConfig{
		Workers:     2,
		Slots:       semaphore.NewMemoryStore(),
		QueueLimits: func(string) int { return 2 },
		Logger:      testLogger(),
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSubmitRequiresRegisteredHandler(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.Submit(Spec{Queue: "q", Command: "nope"})
	assert.Error(t, err)
}

func TestSubmitRequiresQueue(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Register("work", func(context.Context, []string) error { return nil })

	_, err := rt.Submit(Spec{Command: "work"})
	assert.Error(t, err)
}

func TestWorkerExecutesReadyJob(t *testing.T) {
	rt := newTestRuntime(t)

	var ran atomic.Int32
	var gotArgs atomic.Value
	rt.Register("work", func(ctx context.Context, args []string) error {
		gotArgs.Store(args)
		ran.Add(1)
		return nil
	})

	rt.Start(context.Background())
	defer rt.Stop()

	_, err := rt.Submit(Spec{Queue: "q", Command: "work", Args: []string{"a", "b"}})
	require.NoError(t, err)

	waitFor(t, 2*time.Second, func() bool { return ran.Load() == 1 })
	assert.Equal(t, []string{"a", "b"}, gotArgs.Load())

	// Completed jobs leave the table.
	waitFor(t, time.Second, func() bool { return len(rt.List(StateRunning, "")) == 0 })
}

func TestScheduledJobWaitsForRunAt(t *testing.T) {
	rt := newTestRuntime(t)

	var ran atomic.Int32
	rt.Register("later", func(context.Context, []string) error {
		ran.Add(1)
		return nil
	})

	rt.Start(context.Background())
	defer rt.Stop()

	id, err := rt.Submit(Spec{Queue: "q", Command: "later", RunAt: time.Now().Add(600 * time.Millisecond)})
	require.NoError(t, err)

	scheduled := rt.List(StateScheduled, "later")
	require.Len(t, scheduled, 1)
	assert.Equal(t, id, scheduled[0].ID)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load(), "must not run before run-at")

	waitFor(t, 2*time.Second, func() bool { return ran.Load() == 1 })
}

func TestCancelScheduledJob(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Register("later", func(context.Context, []string) error { return nil })

	id, err := rt.Submit(Spec{Queue: "q", Command: "later", RunAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	assert.True(t, rt.Cancel(id))
	assert.Empty(t, rt.List(StateScheduled, "later"))
	assert.False(t, rt.Cancel(id), "second cancel is a no-op")
}

func TestExpiredJobIsDropped(t *testing.T) {
	rt := newTestRuntime(t)

	var ran atomic.Int32
	rt.Register("stale", func(context.Context, []string) error {
		ran.Add(1)
		return nil
	})

	// Submit before starting workers so the item sits in the queue past
	// its expiration.
	_, err := rt.Submit(Spec{Queue: "q", Command: "stale", Expiration: time.Nanosecond})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	rt.Start(context.Background())
	defer rt.Stop()

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load(), "expired item must be dropped, not run")
	assert.Empty(t, rt.List(StateReady, "stale"))
}

func TestFailedJobIsNotRetried(t *testing.T) {
	rt := newTestRuntime(t)

	var ran atomic.Int32
	rt.Register("flaky", func(context.Context, []string) error {
		ran.Add(1)
		return assert.AnError
	})

	rt.Start(context.Background())
	defer rt.Stop()

	_, err := rt.Submit(Spec{Queue: "q", Command: "flaky"})
	require.NoError(t, err)

	waitFor(t, 2*time.Second, func() bool { return ran.Load() == 1 })
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), ran.Load(), "at-most-once: no automatic retry")
}

func TestSpecConcurrencyWidensQueueAdmission(t *testing.T) {
	// No QueueLimits configured, so the static limit for any queue is the
	// default of 1; the submission-level concurrency must still let both
	// instances through admission at once.
	store := semaphore.NewMemoryStore()
	rt := NewRuntime(RuntimeConfig{
		Workers: 2,
		Slots:   store,
		Logger:  testLogger(),
	})

	var running atomic.Int32
	release := make(chan struct{})
	rt.Register("search:backlog", func(context.Context, []string) error {
		running.Add(1)
		<-release
		return nil
	})

	rt.Start(context.Background())
	defer rt.Stop()

	for i := 0; i < 2; i++ {
		_, err := rt.Submit(Spec{Queue: "search", Command: "search:backlog", Concurrency: 2})
		require.NoError(t, err)
	}

	waitFor(t, 3*time.Second, func() bool { return running.Load() == 2 })

	count, err := store.Count(context.Background(), "search")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "both instances hold a slot")

	close(release)
}

func TestListFiltersByCommand(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Register("a", func(context.Context, []string) error { return nil })
	rt.Register("b", func(context.Context, []string) error { return nil })

	_, err := rt.Submit(Spec{Queue: "q", Command: "a", RunAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = rt.Submit(Spec{Queue: "q", Command: "b", RunAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	assert.Len(t, rt.List(StateScheduled, "a"), 1)
	assert.Len(t, rt.List(StateScheduled, ""), 2)
}
