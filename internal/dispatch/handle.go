package dispatch

import (
	"context"
	"sync/atomic"
)

// Handle states.
const (
	handlePending int32 = iota
	handleRunning
	handleDone
	handleCancelled
)

// Handle tracks one submitted task. Errors reported here are infrastructure
// errors (payload error, panic, cancellation, shutdown) — never workflow
// logic outcomes.
type Handle struct {
	state atomic.Int32
	err   error // written once, before done is closed
	done  chan struct{}
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Wait blocks until the task completes, is cancelled, or the context is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return h.err
	}
}

// Done reports whether the task has finished (completed or cancelled).
func (h *Handle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err returns the task's error. Only meaningful once Done reports true.
func (h *Handle) Err() error { return h.err }

// Cancel removes a still-pending task from consideration. It returns true if
// the task had not started; a running task is never interrupted and must
// cooperate via its own context checks.
func (h *Handle) Cancel() bool {
	if h.state.CompareAndSwap(handlePending, handleCancelled) {
		h.err = ErrCancelled
		close(h.done)
		return true
	}
	return false
}

// start transitions pending -> running. False means the task was cancelled.
func (h *Handle) start() bool {
	return h.state.CompareAndSwap(handlePending, handleRunning)
}

// complete finishes a running or still-pending task with the given error.
func (h *Handle) complete(err error) {
	if h.state.CompareAndSwap(handleRunning, handleDone) ||
		h.state.CompareAndSwap(handlePending, handleDone) {
		h.err = err
		close(h.done)
	}
}
