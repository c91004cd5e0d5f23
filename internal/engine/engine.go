// Package engine pumps workflows through the dispatcher. Each dispatched
// task runs exactly one phase of a workflow's root container; when the root
// still wants another phase the engine resubmits it as a fresh task with the
// same priority and a new sequence number. That explicit trampoline is what
// lets long workflows interleave fairly with equal-priority competitors.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vk/phasegridgo/internal/capability"
	"github.com/vk/phasegridgo/internal/ctxlog"
	"github.com/vk/phasegridgo/internal/dispatch"
	"github.com/vk/phasegridgo/internal/flow"
)

// resubmitAttempts bounds the retry loop for re-queueing a phase when the
// bounded queue is momentarily full.
const resubmitAttempts = 3

// Engine schedules workflows onto one dispatcher and one shared session.
// Multiple independent sessions run as independent Engine instances; there
// is no ordering guarantee across them.
type Engine struct {
	dispatcher *dispatch.Dispatcher
	session    capability.Session
}

// New wires an engine to its dispatcher and the session its workflows drive.
// The session may be nil when every submitted workflow is pre-bound.
func New(d *dispatch.Dispatcher, session capability.Session) *Engine {
	return &Engine{dispatcher: d, session: session}
}

// Submit schedules the workflow and returns its future. The returned error
// reflects scheduling problems only (queue full, engine closed); workflow
// logic failure is reported through the outcome, and the future completes
// normally either way.
func (e *Engine) Submit(wf *flow.Workflow) (*flow.Future, error) {
	if wf.Session() == nil {
		wf.BindSession(e.session)
	}
	fut := flow.NewFuture()
	if err := e.enqueuePhase(wf, fut); err != nil {
		return nil, err
	}
	return fut, nil
}

// Pause stops new phases from starting. A phase currently on a worker
// finishes uninterrupted.
func (e *Engine) Pause() { e.dispatcher.Pause() }

// Resume releases paused workers.
func (e *Engine) Resume() { e.dispatcher.Resume() }

// IsPaused reports the dispatcher's pause flag.
func (e *Engine) IsPaused() bool { return e.dispatcher.IsPaused() }

// Close shuts the underlying dispatcher down.
func (e *Engine) Close() { e.dispatcher.Close() }

// enqueuePhase submits one phase-sized task for wf's root and ties the
// future to the task's handle: a task completed with an error never resolved
// the future itself (it was dropped by Close or Cancel, or the payload
// failed), so that error is the workflow's infrastructure failure. Fail is
// once-guarded, so a future the payload already resolved is untouched.
func (e *Engine) enqueuePhase(wf *flow.Workflow, fut *flow.Future) error {
	h, err := e.dispatcher.Submit(wf.Priority(), e.phaseTask(wf, fut))
	if err != nil {
		return err
	}
	go func() {
		if werr := h.Wait(context.Background()); werr != nil {
			fut.Fail(werr)
		}
	}()
	return nil
}

// phaseTask builds the payload that runs a single root phase and then either
// resubmits the workflow or finalizes it.
func (e *Engine) phaseTask(wf *flow.Workflow, fut *flow.Future) dispatch.Fn {
	return func(ctx context.Context) error {
		logger := ctxlog.FromContext(ctx).With("workflow", wf.Name(), "run", wf.ID())
		ctx = ctxlog.WithLogger(ctx, logger)

		root := wf.Root()
		logger.Debug("Running workflow phase.", "state", root.State().String())
		root.RunPhase(ctx)

		if root.HasNextPhase() {
			return e.resubmit(wf, fut, logger)
		}

		outcome := wf.Finalize()
		if outcome.Failed {
			logger.Warn("Workflow finished with failure.",
				"errors", len(outcome.Errors), "elapsed", outcome.Elapsed)
		} else {
			logger.Info("Workflow finished.", "elapsed", outcome.Elapsed)
		}
		fut.Complete(outcome)

		if next := wf.Continuation(); next != nil {
			logger.Info("Starting continuation workflow.", "next", next.Name())
			if next.Session() == nil {
				next.BindSession(wf.Session())
			}
			// The continuation gets its own future; callers that care about
			// it chain through its callbacks.
			if err := e.enqueuePhase(next, flow.NewFuture()); err != nil {
				logger.Error("Failed to schedule continuation.", "error", err)
			}
		}
		return nil
	}
}

// resubmit re-queues the next phase. A full queue is retryable per the
// dispatcher contract, so a few short-backoff attempts are made before the
// workflow is abandoned as an infrastructure failure.
func (e *Engine) resubmit(wf *flow.Workflow, fut *flow.Future, logger *slog.Logger) error {
	var err error
	for attempt := 0; attempt < resubmitAttempts; attempt++ {
		if err = e.enqueuePhase(wf, fut); err == nil {
			return nil
		}
		if !errors.Is(err, dispatch.ErrQueueFull) {
			break
		}
		logger.Warn("Queue full while re-queueing phase, backing off.", "attempt", attempt+1)
		time.Sleep(10 * time.Millisecond)
	}
	fut.Fail(err)
	return err
}
