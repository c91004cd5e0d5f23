package flow

import (
	"context"
	"sync"
)

// Future resolves to a workflow's Outcome. It completes normally even when
// the workflow logically failed; an error from Wait means scheduling or
// infrastructure failure, never workflow-logic failure.
type Future struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
	err     error
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Complete resolves the future. Only the first call has effect.
func (f *Future) Complete(o Outcome) {
	f.once.Do(func() {
		f.outcome = o
		close(f.done)
	})
}

// Fail resolves the future with an infrastructure error, e.g. the dispatcher
// shut down before the workflow could finish. Only the first call has effect.
func (f *Future) Fail(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the outcome is available or the context is done.
func (f *Future) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-f.done:
		return f.outcome, f.err
	}
}
