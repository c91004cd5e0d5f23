// Package flow defines the workflow root: a composition tree of phased
// actions plus the bookkeeping shared across them — variable store, window
// registry, terminal callbacks, and the optional continuation workflow.
package flow

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vk/phasegridgo/internal/action"
	"github.com/vk/phasegridgo/internal/capability"
)

// Workflow is the root of one submitted composition tree. It implements
// action.Owner, so every action in the tree reaches the session, variables,
// and windows through its workflow.
type Workflow struct {
	name     string
	id       string
	priority int
	root     *action.Sequence

	mu       sync.RWMutex
	session  capability.Session
	vars     map[string]any
	windows  map[string]string
	next     *Workflow
	finalize sync.Once

	cbMu      sync.Mutex
	onSuccess []func(*Workflow)
	onFailure []func(*Workflow)
	onDone    []func(*Workflow)
}

// New creates a workflow with the given name and dispatch priority (lower
// runs first). The root sequence is owned by the workflow from the start.
func New(name string, priority int) *Workflow {
	w := &Workflow{
		name:     name,
		id:       uuid.NewString(),
		priority: priority,
		root:     action.NewSequence(name),
		vars:     make(map[string]any),
		windows:  make(map[string]string),
	}
	w.root.Attach(w)
	return w
}

// Name implements action.Owner.
func (w *Workflow) Name() string { return w.name }

// ID is the unique run identifier, used in logs.
func (w *Workflow) ID() string { return w.id }

// Priority is the dispatch priority for every phase of this workflow.
func (w *Workflow) Priority() int { return w.priority }

// Root exposes the root container for composition and for the engine pump.
func (w *Workflow) Root() *action.Sequence { return w.root }

// Add appends an action to the root sequence.
func (w *Workflow) Add(a action.Action) *Workflow {
	w.root.AddLast(a)
	return w
}

// BindSession attaches the live session handle the workflow's actions drive.
// The engine calls it at submission time.
func (w *Workflow) BindSession(s capability.Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = s
}

// Session implements action.Owner.
func (w *Workflow) Session() capability.Session {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.session
}

// Var reads from the cross-action variable store.
func (w *Workflow) Var(key string) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.vars[key]
	return v, ok
}

// SetVar writes to the cross-action variable store. Any child action may
// write; any goroutine may read.
func (w *Workflow) SetVar(key string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.vars[key] = value
}

// Window resolves a registered window name to its session window id.
func (w *Workflow) Window(name string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.windows[name]
	return id, ok
}

// SetWindow registers a window name to session window id mapping.
func (w *Workflow) SetWindow(name, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.windows[name] = id
}

// OnSuccess registers a callback fired once if the workflow completes
// without failure.
func (w *Workflow) OnSuccess(f func(*Workflow)) *Workflow {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.onSuccess = append(w.onSuccess, f)
	return w
}

// OnFailure registers a callback fired once if the workflow fails.
func (w *Workflow) OnFailure(f func(*Workflow)) *Workflow {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.onFailure = append(w.onFailure, f)
	return w
}

// OnDone registers a callback fired once at completion, win or lose.
func (w *Workflow) OnDone(f func(*Workflow)) *Workflow {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.onDone = append(w.onDone, f)
	return w
}

// ContinueWith links another workflow to run after this one finishes,
// whatever the outcome. The engine pumps it directly, without letting an
// unrelated submission jump between the two.
func (w *Workflow) ContinueWith(next *Workflow) *Workflow {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next = next
	return w
}

// Continuation returns the linked follow-up workflow, if any.
func (w *Workflow) Continuation() *Workflow {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.next
}

// Failed reports the aggregated failure state of the tree.
func (w *Workflow) Failed() bool { return w.root.Failed() }

// Errors returns the aggregated error list of the tree.
func (w *Workflow) Errors() []error { return w.root.Errors() }

// Finalize fires the terminal callbacks exactly once, synchronously, and
// returns the workflow's outcome. The engine calls it when the root's last
// phase has run.
func (w *Workflow) Finalize() Outcome {
	w.finalize.Do(func() {
		w.cbMu.Lock()
		success := append([]func(*Workflow){}, w.onSuccess...)
		failure := append([]func(*Workflow){}, w.onFailure...)
		done := append([]func(*Workflow){}, w.onDone...)
		w.cbMu.Unlock()

		if w.Failed() {
			for _, f := range failure {
				f(w)
			}
		} else {
			for _, f := range success {
				f(w)
			}
		}
		for _, f := range done {
			f(w)
		}
	})
	return w.Outcome()
}

// Outcome snapshots the workflow's aggregated result.
func (w *Workflow) Outcome() Outcome {
	return Outcome{
		Failed:  w.root.Failed(),
		Errors:  w.root.Errors(),
		Elapsed: w.root.Elapsed(),
	}
}

// Outcome is the user-visible result of a workflow. A logically failed
// workflow still completes its future normally; callers check Failed, not an
// error from Wait.
type Outcome struct {
	Failed  bool
	Errors  []error
	Elapsed time.Duration
}
