// Package retryutil is the shared bounded-retry policy for the scheduler and
// torrent queue: fixed attempts, fixed backoff, optional retryable-error
// predicate.
package retryutil

import (
	"context"
	"time"

	"github.com/avast/retry-go"
)

// Do runs fn up to attempts times, sleeping delay between attempts. When
// retryIf is non-nil, a failure it rejects aborts the loop immediately. The
// returned error is the last one fn produced.
func Do(ctx context.Context, attempts uint, delay time.Duration, retryIf func(error) bool, fn func() error) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	}
	if retryIf != nil {
		opts = append(opts, retry.RetryIf(retryIf))
	}
	return retry.Do(fn, opts...)
}
