package flow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/phasegridgo/internal/action"
	"github.com/vk/phasegridgo/internal/flow"
	"github.com/vk/phasegridgo/internal/testutil"
)

// runToEnd pumps the workflow's root until it stops asking for phases, the
// way the engine does, then finalizes it.
func runToEnd(t *testing.T, wf *flow.Workflow) flow.Outcome {
	t.Helper()
	root := wf.Root()
	for i := 0; i < 100; i++ {
		if !root.HasNextPhase() {
			return wf.Finalize()
		}
		root.RunPhase(context.Background())
	}
	t.Fatalf("workflow %q still wants phases after 100 dispatches", wf.Name())
	return flow.Outcome{}
}

func noop(name string) *action.Single {
	return action.NewSingle(name, func(ctx context.Context, a *action.Single) error {
		return nil
	})
}

func TestWorkflow_IdentityAndPriority(t *testing.T) {
	t.Parallel()

	a := flow.New("login", 3)
	b := flow.New("login", 3)

	require.Equal(t, "login", a.Name())
	require.Equal(t, 3, a.Priority())
	require.NotEmpty(t, a.ID())
	require.NotEqual(t, a.ID(), b.ID(), "every run gets a unique id")
}

func TestWorkflow_ActionsShareVariableStore(t *testing.T) {
	t.Parallel()

	wf := flow.New("vars", 1)
	wf.Add(action.NewSingle("write", func(ctx context.Context, a *action.Single) error {
		a.Owner().SetVar("greeting", "hello")
		return nil
	}))
	wf.Add(action.NewSingle("read", func(ctx context.Context, a *action.Single) error {
		v, ok := a.Owner().Var("greeting")
		if !ok {
			return errors.New("variable not visible to later action")
		}
		a.Owner().SetVar("echo", v)
		return nil
	}))

	outcome := runToEnd(t, wf)
	require.False(t, outcome.Failed)

	v, ok := wf.Var("echo")
	require.True(t, ok)
	require.Equal(t, "hello", v)
}

func TestWorkflow_WindowRegistry(t *testing.T) {
	t.Parallel()

	wf := flow.New("windows", 1)
	wf.SetWindow("popup", "CDwindow-42")

	id, ok := wf.Window("popup")
	require.True(t, ok)
	require.Equal(t, "CDwindow-42", id)

	_, ok = wf.Window("unknown")
	require.False(t, ok)
}

func TestWorkflow_BindSessionReachesActions(t *testing.T) {
	t.Parallel()

	sess := testutil.NewFakeSession()
	wf := flow.New("navigate", 1)
	wf.BindSession(sess)
	wf.Add(action.NewSingle("go", func(ctx context.Context, a *action.Single) error {
		return a.Owner().Session().Navigate(ctx, "https://example.com")
	}))

	outcome := runToEnd(t, wf)
	require.False(t, outcome.Failed)
	require.Equal(t, []string{"navigate https://example.com"}, sess.Calls())
}

func TestWorkflow_SuccessCallbacks(t *testing.T) {
	t.Parallel()

	var fired []string
	wf := flow.New("ok", 1)
	wf.Add(noop("step"))
	wf.OnSuccess(func(w *flow.Workflow) { fired = append(fired, "success") })
	wf.OnFailure(func(w *flow.Workflow) { fired = append(fired, "failure") })
	wf.OnDone(func(w *flow.Workflow) { fired = append(fired, "done") })

	runToEnd(t, wf)
	require.Equal(t, []string{"success", "done"}, fired)

	// Finalize is idempotent; callbacks never fire twice.
	wf.Finalize()
	require.Equal(t, []string{"success", "done"}, fired)
}

func TestWorkflow_FailureCallbacks(t *testing.T) {
	t.Parallel()

	stepErr := errors.New("step exploded")
	var fired []string
	wf := flow.New("bad", 1)
	wf.Add(action.NewSingle("boom", func(ctx context.Context, a *action.Single) error {
		return stepErr
	}))
	wf.OnSuccess(func(w *flow.Workflow) { fired = append(fired, "success") })
	wf.OnFailure(func(w *flow.Workflow) { fired = append(fired, "failure") })
	wf.OnDone(func(w *flow.Workflow) { fired = append(fired, "done") })

	outcome := runToEnd(t, wf)

	require.Equal(t, []string{"failure", "done"}, fired)
	require.True(t, outcome.Failed)
	require.True(t, wf.Failed())
	require.Len(t, outcome.Errors, 1)
	require.ErrorIs(t, outcome.Errors[0], stepErr)
}

func TestWorkflow_ContinuationLink(t *testing.T) {
	t.Parallel()

	first := flow.New("first", 1)
	second := flow.New("second", 1)
	require.Nil(t, first.Continuation())

	first.ContinueWith(second)
	require.Same(t, second, first.Continuation())
}

func TestFuture_CompletesNormallyOnLogicalFailure(t *testing.T) {
	t.Parallel()

	fut := flow.NewFuture()
	fut.Complete(flow.Outcome{Failed: true})

	outcome, err := fut.Wait(context.Background())
	require.NoError(t, err, "logical failure is an outcome, not a Wait error")
	require.True(t, outcome.Failed)
}

func TestFuture_FailReportsInfrastructureError(t *testing.T) {
	t.Parallel()

	infraErr := errors.New("dispatcher closed")
	fut := flow.NewFuture()
	fut.Fail(infraErr)

	// Only the first resolution wins.
	fut.Complete(flow.Outcome{})

	_, err := fut.Wait(context.Background())
	require.ErrorIs(t, err, infraErr)

	select {
	case <-fut.Done():
	default:
		t.Fatal("Done channel must be closed after resolution")
	}
}

func TestFuture_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	fut := flow.NewFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fut.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
