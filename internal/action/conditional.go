package action

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/phasegridgo/internal/capability"
)

// Conditional evaluates a condition body exactly once — through the
// dispatcher, since the condition usually needs to inspect session state —
// and then runs one of two pre-registered child lists. A stale-handle error
// from the condition leaves it unevaluated so the next phase retries; any
// other condition error fails the container.
type Conditional struct {
	Base
	cond func(ctx context.Context, c *Conditional) (any, error)

	thenList childList
	elseList childList

	// mu guards active, which stays nil until the condition has been
	// evaluated.
	mu     sync.Mutex
	active *childList
}

// NewConditional builds a branching container around the condition body. The
// body's raw result is coerced with Truthy.
func NewConditional(name string, cond func(ctx context.Context, c *Conditional) (any, error)) *Conditional {
	return &Conditional{Base: newBase(name), cond: cond}
}

// Then appends children to the positive branch. Intended for composition
// time, before the condition runs.
func (c *Conditional) Then(children ...Action) *Conditional {
	for _, child := range children {
		c.thenList.addLast(child)
	}
	return c
}

// Else appends children to the negative branch.
func (c *Conditional) Else(children ...Action) *Conditional {
	for _, child := range children {
		c.elseList.addLast(child)
	}
	return c
}

// activeList returns the chosen branch, or nil before evaluation.
func (c *Conditional) activeList() *childList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Conditional) setActive(l *childList) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = l
}

// AddFirst prepends a child to the active branch. Before the condition has
// been evaluated the active branch is not yet determined, so this is a
// documented no-op.
func (c *Conditional) AddFirst(a Action) {
	if l := c.activeList(); l != nil {
		l.addFirst(a)
	}
}

// AddLast appends a child to the active branch; no-op before evaluation.
func (c *Conditional) AddLast(a Action) {
	if l := c.activeList(); l != nil {
		l.addLast(a)
	}
}

// AddAt inserts a child into the active branch; no-op before evaluation.
func (c *Conditional) AddAt(i int, a Action) {
	if l := c.activeList(); l != nil {
		l.addAt(i, a)
	}
}

// Evaluated reports whether the condition has been resolved to a branch.
func (c *Conditional) Evaluated() bool { return c.activeList() != nil }

// RunPhase resolves the condition on its first successful pass, then drives
// the chosen branch exactly like a Sequence.
func (c *Conditional) RunPhase(ctx context.Context) {
	c.execute(ctx, func(ctx context.Context) error {
		active := c.activeList()
		if active == nil {
			result, err := c.cond(ctx, c)
			if err != nil {
				if errors.Is(err, capability.ErrStaleHandle) {
					// Transient: re-evaluate on the next dispatch.
					return nil
				}
				return err
			}
			if Truthy(result) {
				c.setActive(&c.thenList)
			} else {
				c.setActive(&c.elseList)
			}
			return nil
		}

		child := active.nextRunnable()
		if child == nil {
			c.NoNextPhase()
			return nil
		}
		if child.Owner() == nil {
			child.Attach(c.Owner())
		}
		child.RunPhase(ctx)
		return nil
	})
}

// Done requires the container's own phases to be finished and, once a branch
// was chosen, every child of that branch to be done.
func (c *Conditional) Done() bool {
	if !c.Base.Done() {
		return false
	}
	if l := c.activeList(); l != nil {
		return l.allDone()
	}
	return true
}

// Failed is true if the condition evaluation failed or any child of the
// active branch failed.
func (c *Conditional) Failed() bool {
	if c.Base.Failed() {
		return true
	}
	if l := c.activeList(); l != nil {
		return l.anyFailed()
	}
	return false
}

// Errors concatenates the container's own errors with the active branch's
// children errors, in child order.
func (c *Conditional) Errors() []error {
	errs := c.Base.Errors()
	if l := c.activeList(); l != nil {
		errs = append(errs, l.errors()...)
	}
	return errs
}
