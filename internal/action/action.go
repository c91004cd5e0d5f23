package action

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/phasegridgo/internal/capability"
)

// Owner is the workflow an action belongs to. It gives phase bodies access to
// the shared session, the cross-action variable store, and the window
// registry. Ownership is exclusive and set exactly once, before the action is
// first scheduled.
type Owner interface {
	Name() string
	Session() capability.Session
	Var(key string) (any, bool)
	SetVar(key string, value any)
	Window(name string) (string, bool)
	SetWindow(name, id string)
}

// Action is one schedulable workflow unit.
type Action interface {
	Name() string

	// RunPhase executes exactly one phase. Errors are recorded on the
	// action, never returned: the caller inspects HasNextPhase and Failed
	// afterwards to decide whether to resubmit or finalize.
	RunPhase(ctx context.Context)

	// HasNextPhase reports whether another phase must be dispatched.
	HasNextPhase() bool
	// NoNextPhase marks the action definitively finished. Phase bodies call
	// it on success or permanent failure; the machinery forces it on error.
	NoNextPhase()

	State() State
	Done() bool
	Failed() bool
	Errors() []error
	Elapsed() time.Duration

	Attach(owner Owner)
	Owner() Owner
}

// Base carries the state shared by every action kind. Fields use atomic or
// mutex-guarded access because successive phases of one action may run on
// different workers, and status polling may happen on yet another goroutine.
type Base struct {
	name    string
	state   atomic.Int32
	hasNext atomic.Bool
	elapsed atomic.Int64 // accumulated nanoseconds across phases

	ownerMu sync.Mutex
	owner   Owner

	errMu sync.Mutex
	errs  []error
}

func newBase(name string) Base {
	b := Base{name: name}
	b.hasNext.Store(true)
	return b
}

func (b *Base) Name() string { return b.name }

func (b *Base) State() State { return State(b.state.Load()) }

// Done reports a terminal state: Complete or CompleteWithError, never
// WaitForNextPhase.
func (b *Base) Done() bool { return b.State().Terminal() }

func (b *Base) Failed() bool { return b.State() == CompleteWithError }

func (b *Base) HasNextPhase() bool { return b.hasNext.Load() }

func (b *Base) NoNextPhase() { b.hasNext.Store(false) }

// Errors returns a copy of the action's append-only error list.
func (b *Base) Errors() []error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	out := make([]error, len(b.errs))
	copy(out, b.errs)
	return out
}

func (b *Base) appendError(err error) {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	b.errs = append(b.errs, err)
}

// Elapsed returns the total time spent inside phase bodies so far.
func (b *Base) Elapsed() time.Duration {
	return time.Duration(b.elapsed.Load())
}

// Attach sets the owning workflow. It panics if the action is already owned:
// actions are composed into exactly one tree, before scheduling.
func (b *Base) Attach(owner Owner) {
	b.ownerMu.Lock()
	defer b.ownerMu.Unlock()
	if b.owner != nil {
		panic(fmt.Sprintf("action: %q is already attached to workflow %q", b.name, b.owner.Name()))
	}
	b.owner = owner
}

func (b *Base) Owner() Owner {
	b.ownerMu.Lock()
	defer b.ownerMu.Unlock()
	return b.owner
}

// execute runs one phase body under the phase contract: mark Running, time
// the body (the timer stops even on panic), record any error and force
// NoNextPhase on failure, otherwise resolve to WaitForNextPhase or Complete
// from the hasNext flag.
func (b *Base) execute(ctx context.Context, body func(context.Context) error) {
	b.state.Store(int32(Running))
	start := time.Now()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("action %q: phase panic: %v", b.name, r)
			}
		}()
		err = body(ctx)
	}()
	b.elapsed.Add(time.Since(start).Nanoseconds())

	if err != nil {
		b.appendError(err)
		b.hasNext.Store(false)
		b.state.Store(int32(CompleteWithError))
		return
	}
	if b.hasNext.Load() {
		b.state.Store(int32(WaitForNextPhase))
	} else {
		b.state.Store(int32(Complete))
	}
}
