package action

import (
	"context"
	"fmt"
	"time"
)

// Multi leaves the hasNext flag under the body's control. It models
// operations that poll or retry: the body calls NoNextPhase when it has
// definitively finished, and simply returns nil to be dispatched again —
// including after swallowing a recognized transient error such as a stale
// element handle.
type Multi struct {
	Base
	body      func(ctx context.Context, a *Multi) error
	deadline  time.Duration
	onTimeout func(a *Multi)
}

// NewMulti builds a multi-phase action around body.
func NewMulti(name string, body func(ctx context.Context, a *Multi) error) *Multi {
	return &Multi{Base: newBase(name), body: body}
}

// WithDeadline bounds the action's accumulated elapsed time. When a phase
// starts past the deadline the action stops: by recording a timeout error,
// or by invoking the OnTimeout callback instead if one is set.
func (m *Multi) WithDeadline(d time.Duration) *Multi {
	m.deadline = d
	return m
}

// OnTimeout replaces the timeout error with a callback, letting callers treat
// expiry as a non-failure outcome.
func (m *Multi) OnTimeout(f func(a *Multi)) *Multi {
	m.onTimeout = f
	return m
}

// RunPhase implements Action.
func (m *Multi) RunPhase(ctx context.Context) {
	m.execute(ctx, func(ctx context.Context) error {
		if m.deadline > 0 && m.Elapsed() >= m.deadline {
			m.NoNextPhase()
			if m.onTimeout != nil {
				m.onTimeout(m)
				return nil
			}
			return fmt.Errorf("action %q: timed out after %s", m.Name(), m.deadline)
		}
		return m.body(ctx, m)
	})
}
