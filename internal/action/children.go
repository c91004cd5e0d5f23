package action

import "sync"

// childList is an ordered, mutable list of child actions. Mutation is
// synchronized against the iteration that drives execution; readers work on
// a snapshot so a body appending to its own container cannot invalidate the
// pass that is running it.
type childList struct {
	mu    sync.Mutex
	items []Action
}

func (l *childList) addFirst(a Action) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append([]Action{a}, l.items...)
}

func (l *childList) addLast(a Action) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, a)
}

// addAt inserts at index i, clamped to the list bounds.
func (l *childList) addAt(i int, a Action) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 {
		i = 0
	}
	if i > len(l.items) {
		i = len(l.items)
	}
	l.items = append(l.items[:i], append([]Action{a}, l.items[i:]...)...)
}

func (l *childList) snapshot() []Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Action, len(l.items))
	copy(out, l.items)
	return out
}

// nextRunnable walks the list in order and returns the first child that still
// needs a phase. It returns nil when every child is done, or when a failed
// child short-circuits advancement: children after a failure are never
// started, but nothing already dispatched is aborted.
func (l *childList) nextRunnable() Action {
	for _, child := range l.snapshot() {
		if child.Failed() {
			return nil
		}
		if !child.Done() {
			return child
		}
	}
	return nil
}

func (l *childList) allDone() bool {
	for _, child := range l.snapshot() {
		if !child.Done() {
			return false
		}
	}
	return true
}

func (l *childList) anyFailed() bool {
	for _, child := range l.snapshot() {
		if child.Failed() {
			return true
		}
	}
	return false
}

func (l *childList) errors() []error {
	var out []error
	for _, child := range l.snapshot() {
		out = append(out, child.Errors()...)
	}
	return out
}
