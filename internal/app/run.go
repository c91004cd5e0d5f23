package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/phasegridgo/internal/capability"
	"github.com/vk/phasegridgo/internal/ctxlog"
	"github.com/vk/phasegridgo/internal/devtools"
	"github.com/vk/phasegridgo/internal/dispatch"
	"github.com/vk/phasegridgo/internal/engine"
	"github.com/vk/phasegridgo/internal/flow"
	"github.com/vk/phasegridgo/internal/webdriver"
)

// submitBackoff is the pause before retrying a submission rejected by a full
// queue.
const submitBackoff = 50 * time.Millisecond

// Run executes the main application logic: load scripts, open the session,
// pump every workflow through one dispatcher, and report the aggregate
// outcome.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	workflows, err := a.loader.LoadPath(ctx, a.config.ScriptPath)
	if err != nil {
		return fmt.Errorf("failed to load workflow scripts: %w", err)
	}
	a.logger.Debug("Workflow scripts loaded.", "workflow_count", len(workflows))
	if len(workflows) == 0 {
		a.logger.Warn("No workflows found in scripts, execution not required.")
		return nil
	}

	session, err := a.openSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s session: %w", a.config.Driver, err)
	}
	defer func() {
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil {
			a.logger.Warn("Session close failed.", "error", cerr)
		}
	}()

	dispatcher := dispatch.New(ctx, dispatch.Config{
		Workers:       a.config.WorkerCount,
		QueueCapacity: a.config.QueueCapacity,
	})
	eng := engine.New(dispatcher, session)
	defer eng.Close()

	a.startStatusServer(ctx, eng, dispatcher)
	defer a.closeStatusServer(ctx)

	a.logger.Info("🚀 Starting workflow execution.",
		"workflows", len(workflows), "workers", a.config.WorkerCount)

	futures := make(map[string]*flow.Future, len(workflows))
	for _, wf := range workflows {
		fut, err := a.submit(ctx, eng, wf)
		if err != nil {
			return fmt.Errorf("failed to submit workflow %q: %w", wf.Name(), err)
		}
		futures[wf.Name()] = fut
	}

	var failed []string
	var rootCause error
	for name, fut := range futures {
		outcome, err := fut.Wait(ctx)
		if err != nil {
			return fmt.Errorf("workflow %q did not finish: %w", name, err)
		}
		if outcome.Failed {
			failed = append(failed, name)
			if rootCause == nil && len(outcome.Errors) > 0 {
				rootCause = outcome.Errors[0]
			}
		}
	}
	a.logger.Info("🏁 Execution finished.", "failed_workflows", len(failed))

	if len(failed) > 0 {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	return nil
}

// submit retries a queue-full rejection per the dispatcher's backoff
// contract; any other error is fatal for the run.
func (a *App) submit(ctx context.Context, eng *engine.Engine, wf *flow.Workflow) (*flow.Future, error) {
	for {
		fut, err := eng.Submit(wf)
		if err == nil {
			return fut, nil
		}
		if !errors.Is(err, dispatch.ErrQueueFull) {
			return nil, err
		}
		a.logger.Warn("Queue full, backing off before resubmitting.", "workflow", wf.Name())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(submitBackoff):
		}
	}
}

// openSession builds the configured capability driver.
func (a *App) openSession(ctx context.Context) (capability.Session, error) {
	switch a.config.Driver {
	case "devtools":
		return devtools.Dial(ctx, a.config.DriverURL)
	default:
		return webdriver.New(ctx, a.config.DriverURL)
	}
}
