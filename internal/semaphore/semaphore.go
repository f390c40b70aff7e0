// Package semaphore implements the per-queue counting semaphore that caps
// how many jobs of a named queue run at once. Counters live in a shared
// store so that every worker observes the same count.
package semaphore

import (
	"context"
	"time"
)

// slotTTL bounds how long a crashed holder can pin a slot. It is a leak
// safety net, not a correctness mechanism.
const slotTTL = 3600 * time.Second

// Store tracks one counter per queue name.
//
// Acquire and Release are atomic against the backing store: concurrent
// callers never observe a stale count. Acquire reports false when the queue
// is already at limit. Release reports whether a holder remains afterwards;
// releasing an absent key is a no-op. A limit <= 0 means unlimited and
// Acquire always succeeds without touching the counter.
type Store interface {
	Acquire(ctx context.Context, queue string, limit int) (bool, error)
	Release(ctx context.Context, queue string) (bool, error)
	Count(ctx context.Context, queue string) (int, error)
}
