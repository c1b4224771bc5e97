package shardqueue

import "context"

// Job is a unit of work executed by a ShardExecutor.
type Job interface {
	Run(ctx context.Context) error
}

// Finalizer is implemented by jobs that want the terminal outcome once the
// executor is done with them: success, last failed attempt, cancellation
// before running, or a recovered panic. Finalize is called exactly once.
type Finalizer interface {
	Finalize(err error)
}

// AttemptLimiter is implemented by jobs that allow fewer attempts than the
// executor's MaxAttempts. Values below one mean a single attempt.
type AttemptLimiter interface {
	MaxAttempts() int
}

// JobFunc adapts a function to a Job.
type JobFunc func(ctx context.Context) error

// Run implements Job.
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }
