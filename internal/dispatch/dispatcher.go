package dispatch

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/phasegridgo/internal/ctxlog"
)

var (
	// ErrClosed is returned for submissions after Close, and recorded on
	// tasks still queued when the dispatcher shuts down.
	ErrClosed = errors.New("dispatch: dispatcher closed")
	// ErrQueueFull is returned when the bounded queue is at capacity.
	// Callers should treat it as a backoff-and-retry condition.
	ErrQueueFull = errors.New("dispatch: queue at capacity")
	// ErrCancelled is recorded on tasks removed from the queue before they
	// started.
	ErrCancelled = errors.New("dispatch: task cancelled")
)

// poolSeq numbers dispatcher instances so worker identities stay unique
// across pools within one process.
var poolSeq atomic.Uint64

// Config controls a dispatcher instance.
type Config struct {
	// Name identifies the pool in logs. Defaults to "dispatch-<n>".
	Name string
	// Workers is the pool size. It must match the real concurrency the
	// shared session tolerates; for a strictly serial session this is 1.
	// Defaults to 1.
	Workers int
	// QueueCapacity bounds the pending queue. Zero or negative means
	// unbounded.
	QueueCapacity int
}

// Dispatcher is a pausable worker pool draining a stable priority queue.
type Dispatcher struct {
	name     string
	capacity int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  taskQueue
	paused bool
	closed bool

	seq atomic.Uint64
	wg  sync.WaitGroup
}

// New starts a dispatcher with cfg.Workers workers. The context carries the
// logger workers use; cancelling it does not stop the dispatcher — use Close.
func New(ctx context.Context, cfg Config) *Dispatcher {
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("dispatch-%d", poolSeq.Add(1))
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	d := &Dispatcher{
		name:     cfg.Name,
		capacity: cfg.QueueCapacity,
	}
	d.cond = sync.NewCond(&d.mu)

	logger := ctxlog.FromContext(ctx).With("pool", d.name)
	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		workerCtx := ctxlog.WithLogger(context.WithoutCancel(ctx),
			logger.With("worker", fmt.Sprintf("%s-worker-%d", d.name, i)))
		go d.worker(workerCtx)
	}
	return d
}

// Name returns the pool instance name.
func (d *Dispatcher) Name() string { return d.name }

// Submit enqueues fn with the given priority (lower runs first) and the next
// monotonic sequence number. It returns ErrClosed after Close and
// ErrQueueFull when the bounded queue is at capacity.
func (d *Dispatcher) Submit(priority int, fn Fn) (*Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if d.capacity > 0 && len(d.queue) >= d.capacity {
		return nil, ErrQueueFull
	}

	t := &task{
		priority: priority,
		seq:      d.seq.Add(1),
		fn:       fn,
		handle:   newHandle(),
	}
	heap.Push(&d.queue, t)
	d.cond.Signal()
	return t.handle, nil
}

// Pause stops workers from taking new tasks. Tasks already running finish
// uninterrupted.
func (d *Dispatcher) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
}

// Resume releases workers blocked by Pause.
func (d *Dispatcher) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paused {
		d.paused = false
		d.cond.Broadcast()
	}
}

// IsPaused reports whether the dispatcher is paused.
func (d *Dispatcher) IsPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// QueueLen returns the number of pending tasks.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Close shuts the dispatcher down. In-flight tasks run to completion;
// pending tasks are completed with ErrClosed; subsequent submissions are
// rejected. Close blocks until all workers have exited.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.wg.Wait()
		return
	}
	d.closed = true
	pending := make([]*task, len(d.queue))
	copy(pending, d.queue)
	d.queue = d.queue[:0]
	d.cond.Broadcast()
	d.mu.Unlock()

	for _, t := range pending {
		t.handle.complete(ErrClosed)
	}
	d.wg.Wait()
}

// worker pulls the highest-priority ready task, runs it to completion, and
// goes back to the queue. Pause blocks it here, between tasks.
func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.")

	for {
		d.mu.Lock()
		for (len(d.queue) == 0 || d.paused) && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			logger.Debug("Worker finished.")
			return
		}
		t := heap.Pop(&d.queue).(*task)
		d.mu.Unlock()

		if !t.handle.start() {
			// Cancelled while queued.
			continue
		}
		logger.Debug("Worker picked up task.", "priority", t.priority, "seq", t.seq)
		t.handle.complete(d.runTask(ctx, t))
	}
}

// runTask invokes the payload, converting a panic into a recorded error so
// nothing escapes silently and the worker survives.
func (d *Dispatcher) runTask(ctx context.Context, t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: task panic: %v", r)
			ctxlog.FromContext(ctx).Error("Task panicked.", "panic", r, "seq", t.seq)
		}
	}()
	return t.fn(ctx)
}
