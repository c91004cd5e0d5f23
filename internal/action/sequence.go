package action

import "context"

// Sequence runs its children strictly in order, one child phase per sequence
// phase. Advancement stops at the first failed child; already-finished work
// is never rolled back. A Sequence is itself a phased action, so sequences
// nest inside other containers.
type Sequence struct {
	Base
	children childList
}

// NewSequence builds a sequential container over the given children.
func NewSequence(name string, children ...Action) *Sequence {
	s := &Sequence{Base: newBase(name)}
	for _, c := range children {
		s.children.addLast(c)
	}
	return s
}

// AddFirst prepends a child. Safe while the sequence is running; the new
// child is observed by the next phase.
func (s *Sequence) AddFirst(a Action) { s.children.addFirst(a) }

// AddLast appends a child. Safe while the sequence is running.
func (s *Sequence) AddLast(a Action) { s.children.addLast(a) }

// AddAt inserts a child at the given position, clamped to the list bounds.
func (s *Sequence) AddAt(i int, a Action) { s.children.addAt(i, a) }

// Children returns a snapshot of the current child list.
func (s *Sequence) Children() []Action { return s.children.snapshot() }

// RunPhase advances the first not-yet-done child by one phase. When no child
// remains runnable — all done, or a failure short-circuited the walk — the
// sequence itself finishes.
func (s *Sequence) RunPhase(ctx context.Context) {
	s.execute(ctx, func(ctx context.Context) error {
		child := s.children.nextRunnable()
		if child == nil {
			s.NoNextPhase()
			return nil
		}
		if child.Owner() == nil {
			child.Attach(s.Owner())
		}
		child.RunPhase(ctx)
		return nil
	})
}

// Done requires the sequence's own phases to be finished and every
// currently-known child to be done.
func (s *Sequence) Done() bool {
	return s.Base.Done() && s.children.allDone()
}

// Failed is true if the sequence itself failed or any child failed.
func (s *Sequence) Failed() bool {
	return s.Base.Failed() || s.children.anyFailed()
}

// Errors concatenates the sequence's own errors with every child's errors,
// in child order.
func (s *Sequence) Errors() []error {
	return append(s.Base.Errors(), s.children.errors()...)
}
