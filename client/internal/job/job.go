// Package job adapts closures into shardqueue jobs whose terminal outcome can
// be awaited by the submitter.
package job

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// ErrNilJobFunc is returned when a job is built from a nil function.
var ErrNilJobFunc = errors.New("nil job func")

// Tracked runs fn on an executor and exposes the final result through Wait.
// The executor calls Finalize exactly once; any later call is ignored.
type Tracked struct {
	fn   func(context.Context) error
	once sync.Once
	done chan struct{}
	err  error
}

// New wraps fn.
func New(fn func(context.Context) error) *Tracked {
	return &Tracked{fn: fn, done: make(chan struct{})}
}

// Run implements shardqueue.Job.
func (t *Tracked) Run(ctx context.Context) error {
	if t.fn == nil {
		return fmt.Errorf("job: %w", ErrNilJobFunc)
	}
	return t.fn(ctx)
}

// Finalize implements shardqueue.Finalizer.
func (t *Tracked) Finalize(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Done is closed once the job reached its terminal outcome.
func (t *Tracked) Done() <-chan struct{} { return t.done }

// Wait blocks until Finalize or ctx ends.
func (t *Tracked) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ImageKey is the executor key for mutations targeting one image, so toggles
// of the same image stay ordered.
func ImageKey(imageID int64) string {
	return "image:" + strconv.FormatInt(imageID, 10)
}
