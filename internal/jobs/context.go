package jobs

import "context"

type contextKey struct{}

// JobInfo is the call-scoped execution context set up by the executor before
// a handler runs: which job is executing and on which queue. Handlers read
// it through FromContext; it dies with the job's context.
type JobInfo struct {
	ID    string
	Queue string
}

// WithJob attaches job execution context.
func WithJob(ctx context.Context, info JobInfo) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

// FromContext returns the executing job's info, if any.
func FromContext(ctx context.Context) (JobInfo, bool) {
	info, ok := ctx.Value(contextKey{}).(JobInfo)
	return info, ok
}
