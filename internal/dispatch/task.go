package dispatch

import "context"

// Fn is the payload of a task. A returned error marks the task's handle as
// failed; it does not affect other tasks in the queue.
type Fn func(ctx context.Context) error

// task wraps a payload with its ordering key. Immutable once enqueued.
type task struct {
	priority int
	seq      uint64
	fn       Fn
	handle   *Handle

	// index is maintained by the heap, -1 once popped.
	index int
}

// less defines the queue ordering: strictly by priority, then FIFO by
// sequence number within a priority.
func (t *task) less(other *task) bool {
	if t.priority != other.priority {
		return t.priority < other.priority
	}
	return t.seq < other.seq
}
