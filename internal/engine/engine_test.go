package engine_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vk/phasegridgo/internal/action"
	"github.com/vk/phasegridgo/internal/capability"
	"github.com/vk/phasegridgo/internal/ctxlog"
	"github.com/vk/phasegridgo/internal/dispatch"
	"github.com/vk/phasegridgo/internal/engine"
	"github.com/vk/phasegridgo/internal/flow"
	"github.com/vk/phasegridgo/internal/steps"
	"github.com/vk/phasegridgo/internal/testutil"
)

// trace collects phase labels across workers and workflows.
type trace struct {
	mu    sync.Mutex
	order []string
}

func (tr *trace) add(label string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.order = append(tr.order, label)
}

func (tr *trace) snapshot() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string{}, tr.order...)
}

// phases builds a multi-phase action that records "<label>-<n>" for each of
// its n phases.
func phases(label string, n int, tr *trace) *action.Multi {
	count := 0
	return action.NewMulti(label, func(ctx context.Context, a *action.Multi) error {
		count++
		tr.add(label + "-" + string(rune('0'+count)))
		if count == n {
			a.NoNextPhase()
		}
		return nil
	})
}

func newSerialEngine(t *testing.T, sess capability.Session) (*engine.Engine, *dispatch.Dispatcher) {
	eng, d, _ := newSerialEngineWithLog(t, sess)
	return eng, d
}

// newSerialEngineWithLog routes worker logs into a SafeBuffer; phases run on
// worker goroutines, so a plain bytes.Buffer would race.
func newSerialEngineWithLog(t *testing.T, sess capability.Session) (*engine.Engine, *dispatch.Dispatcher, *testutil.SafeBuffer) {
	t.Helper()
	buf := &testutil.SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)
	d := dispatch.New(ctx, dispatch.Config{Workers: 1})
	t.Cleanup(d.Close)
	return engine.New(d, sess), d, buf
}

func awaitOutcome(t *testing.T, fut *flow.Future) flow.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := fut.Wait(ctx)
	require.NoError(t, err)
	return outcome
}

func TestEngine_RunsWorkflowToCompletion(t *testing.T) {
	t.Parallel()

	sess := testutil.NewFakeSession()
	sess.AddElement(capability.Locator{Strategy: capability.ByCSS, Value: "#submit"}, &testutil.FakeElement{})

	eng, _, buf := newSerialEngineWithLog(t, sess)

	wf := flow.New("login", 1)
	wf.Add(steps.Navigate("https://example.com/login"))
	wf.Add(steps.Click(capability.Locator{Strategy: capability.ByCSS, Value: "#submit"}))

	fut, err := eng.Submit(wf)
	require.NoError(t, err)

	outcome := awaitOutcome(t, fut)
	require.False(t, outcome.Failed)
	require.Empty(t, outcome.Errors)
	require.Equal(t, 1, sess.Clicks(capability.Locator{Strategy: capability.ByCSS, Value: "#submit"}))

	logs := buf.String()
	require.Contains(t, logs, "workflow=login", "phase logs carry the workflow identity")
	require.Contains(t, logs, "Workflow finished.")
}

func TestEngine_EqualPriorityWorkflowsInterleavePhases(t *testing.T) {
	t.Parallel()

	eng, d := newSerialEngine(t, testutil.NewFakeSession())
	tr := &trace{}

	wfA := flow.New("A", 1)
	wfA.Add(phases("A", 2, tr))
	wfB := flow.New("B", 1)
	wfB.Add(phases("B", 2, tr))

	// Pause so both roots are queued before any phase runs; each phase then
	// re-enters the queue behind the competitor's pending phase.
	d.Pause()
	futA, err := eng.Submit(wfA)
	require.NoError(t, err)
	futB, err := eng.Submit(wfB)
	require.NoError(t, err)
	d.Resume()

	awaitOutcome(t, futA)
	awaitOutcome(t, futB)

	order := tr.snapshot()
	require.Equal(t, []string{"A-1", "B-1", "A-2", "B-2"}, order,
		"phases of equal-priority workflows must alternate, not run back to back")
}

func TestEngine_LowerPriorityValueRunsFirst(t *testing.T) {
	t.Parallel()

	eng, d := newSerialEngine(t, testutil.NewFakeSession())
	tr := &trace{}

	urgent := flow.New("urgent", 1)
	urgent.Add(phases("U", 1, tr))
	routine := flow.New("routine", 9)
	routine.Add(phases("R", 1, tr))

	d.Pause()
	futR, err := eng.Submit(routine)
	require.NoError(t, err)
	futU, err := eng.Submit(urgent)
	require.NoError(t, err)
	d.Resume()

	awaitOutcome(t, futR)
	awaitOutcome(t, futU)
	require.Equal(t, "U-1", tr.snapshot()[0])
}

func TestEngine_LogicalFailureCompletesFutureNormally(t *testing.T) {
	t.Parallel()

	eng, _ := newSerialEngine(t, testutil.NewFakeSession())

	wf := flow.New("doomed", 1)
	// Clicking an element that was never scripted fails the action.
	wf.Add(steps.Navigate("https://example.com"))
	wf.Add(steps.ReadText(capability.Locator{Strategy: capability.ByCSS, Value: "#missing"}, "out"))

	fut, err := eng.Submit(wf)
	require.NoError(t, err)

	outcome := awaitOutcome(t, fut)
	require.True(t, outcome.Failed)
	require.NotEmpty(t, outcome.Errors)
}

func TestEngine_ContinuationRunsAfterParent(t *testing.T) {
	t.Parallel()

	sess := testutil.NewFakeSession()
	eng, _ := newSerialEngine(t, sess)
	tr := &trace{}

	var childDone sync.WaitGroup
	childDone.Add(1)

	child := flow.New("child", 1)
	child.Add(phases("child", 1, tr))
	child.OnDone(func(w *flow.Workflow) { childDone.Done() })

	parent := flow.New("parent", 1)
	parent.Add(phases("parent", 2, tr))
	parent.ContinueWith(child)

	fut, err := eng.Submit(parent)
	require.NoError(t, err)
	awaitOutcome(t, fut)
	childDone.Wait()

	require.Equal(t, []string{"parent-1", "parent-2", "child-1"}, tr.snapshot())
	require.Same(t, sess, child.Session(),
		"continuation inherits the parent's session binding")
}

func TestEngine_ContinuationRunsEvenWhenParentFails(t *testing.T) {
	t.Parallel()

	eng, _ := newSerialEngine(t, testutil.NewFakeSession())
	tr := &trace{}

	var childDone sync.WaitGroup
	childDone.Add(1)

	child := flow.New("cleanup", 1)
	child.Add(phases("cleanup", 1, tr))
	child.OnDone(func(w *flow.Workflow) { childDone.Done() })

	parent := flow.New("parent", 1)
	parent.Add(action.NewSingle("boom", func(ctx context.Context, a *action.Single) error {
		return context.DeadlineExceeded
	}))
	parent.ContinueWith(child)

	fut, err := eng.Submit(parent)
	require.NoError(t, err)
	outcome := awaitOutcome(t, fut)
	require.True(t, outcome.Failed)

	childDone.Wait()
	require.Equal(t, []string{"cleanup-1"}, tr.snapshot())
}

func TestEngine_PauseHoldsPhasesUntilResume(t *testing.T) {
	t.Parallel()

	eng, _ := newSerialEngine(t, testutil.NewFakeSession())
	tr := &trace{}

	eng.Pause()
	require.True(t, eng.IsPaused())

	wf := flow.New("held", 1)
	wf.Add(phases("held", 1, tr))
	fut, err := eng.Submit(wf)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, tr.snapshot(), "no phase may start while paused")

	eng.Resume()
	require.False(t, eng.IsPaused())
	awaitOutcome(t, fut)
	require.Equal(t, []string{"held-1"}, tr.snapshot())
}

func TestEngine_CloseResolvesPendingFutures(t *testing.T) {
	t.Parallel()

	eng, d := newSerialEngine(t, testutil.NewFakeSession())

	// Pause so the phase is still queued when the engine shuts down.
	d.Pause()
	wf := flow.New("stranded", 1)
	wf.Add(phases("stranded", 1, &trace{}))
	fut, err := eng.Submit(wf)
	require.NoError(t, err)

	eng.Close()

	// The future must resolve with the shutdown as an infrastructure
	// error instead of leaving the caller blocked until its context dies.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = fut.Wait(ctx)
	require.ErrorIs(t, err, dispatch.ErrClosed)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_SubmitAfterCloseFails(t *testing.T) {
	t.Parallel()

	d := dispatch.New(context.Background(), dispatch.Config{Workers: 1})
	eng := engine.New(d, testutil.NewFakeSession())
	eng.Close()

	wf := flow.New("late", 1)
	_, err := eng.Submit(wf)
	require.ErrorIs(t, err, dispatch.ErrClosed)
}
