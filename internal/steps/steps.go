// Package steps provides the concrete action kinds that drive the session:
// navigate, click, type, read, wait, window management, and conditional
// branching. Each kind is a constructor returning a phased action with a
// closure body — a closed set of data-carrying variants sharing the one
// run-one-phase contract, instead of an inheritance tree.
//
// Kinds that dereference an element handle re-find the element every phase
// and swallow a stale-handle error without calling NoNextPhase, so the next
// dispatch retries the same logical step against the re-rendered page. Any
// other error is terminal for the action.
package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/phasegridgo/internal/action"
	"github.com/vk/phasegridgo/internal/capability"
	"github.com/vk/phasegridgo/internal/ctxlog"
)

// Navigate loads a URL. One-shot: success or terminal failure in one phase.
func Navigate(url string) *action.Single {
	return action.NewSingle("navigate "+url, func(ctx context.Context, a *action.Single) error {
		return a.Owner().Session().Navigate(ctx, url)
	})
}

// Click finds the element and clicks it, retrying on a stale handle.
func Click(loc capability.Locator) *action.Multi {
	name := "click " + loc.String()
	return action.NewMulti(name, func(ctx context.Context, a *action.Multi) error {
		sess := a.Owner().Session()
		h, err := sess.Find(ctx, loc)
		if err != nil {
			return retryIfStale(ctx, name, err)
		}
		if err := sess.Click(ctx, h); err != nil {
			return retryIfStale(ctx, name, err)
		}
		a.NoNextPhase()
		return nil
	})
}

// TypeText finds the element and types into it, retrying on a stale handle.
func TypeText(loc capability.Locator, text string) *action.Multi {
	name := "type " + loc.String()
	return action.NewMulti(name, func(ctx context.Context, a *action.Multi) error {
		sess := a.Owner().Session()
		h, err := sess.Find(ctx, loc)
		if err != nil {
			return retryIfStale(ctx, name, err)
		}
		if err := sess.Type(ctx, h, text); err != nil {
			return retryIfStale(ctx, name, err)
		}
		a.NoNextPhase()
		return nil
	})
}

// ReadText reads the element's text into the workflow variable store.
func ReadText(loc capability.Locator, intoVar string) *action.Multi {
	name := "read-text " + loc.String()
	return action.NewMulti(name, func(ctx context.Context, a *action.Multi) error {
		sess := a.Owner().Session()
		h, err := sess.Find(ctx, loc)
		if err != nil {
			return retryIfStale(ctx, name, err)
		}
		text, err := sess.Text(ctx, h)
		if err != nil {
			return retryIfStale(ctx, name, err)
		}
		a.Owner().SetVar(intoVar, text)
		a.NoNextPhase()
		return nil
	})
}

// ReadAttribute reads an element attribute into the workflow variable store.
func ReadAttribute(loc capability.Locator, attr, intoVar string) *action.Multi {
	name := fmt.Sprintf("read-attribute %s[%s]", loc, attr)
	return action.NewMulti(name, func(ctx context.Context, a *action.Multi) error {
		sess := a.Owner().Session()
		h, err := sess.Find(ctx, loc)
		if err != nil {
			return retryIfStale(ctx, name, err)
		}
		val, err := sess.Attribute(ctx, h, attr)
		if err != nil {
			return retryIfStale(ctx, name, err)
		}
		a.Owner().SetVar(intoVar, val)
		a.NoNextPhase()
		return nil
	})
}

// waitPollInterval spaces consecutive wait-for probes so an otherwise idle
// queue does not hammer the remote end with back-to-back finds.
const waitPollInterval = 50 * time.Millisecond

// WaitFor polls for the element until it appears or the deadline passes.
// Each poll is its own phase, so equal-priority work interleaves between
// probes; a missed probe pauses briefly before handing the worker back.
func WaitFor(loc capability.Locator, deadline time.Duration) *action.Multi {
	name := "wait-for " + loc.String()
	m := action.NewMulti(name, func(ctx context.Context, a *action.Multi) error {
		_, err := a.Owner().Session().Find(ctx, loc)
		switch {
		case err == nil:
			a.NoNextPhase()
			return nil
		case errors.Is(err, capability.ErrNotFound),
			errors.Is(err, capability.ErrStaleHandle):
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitPollInterval):
			}
			return nil
		default:
			return err
		}
	})
	return m.WithDeadline(deadline)
}

// RegisterWindow records the most recently opened window under the given
// name in the workflow's window registry.
func RegisterWindow(name string) *action.Single {
	return action.NewSingle("register-window "+name, func(ctx context.Context, a *action.Single) error {
		ids, err := a.Owner().Session().Windows(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return errors.New("steps: no windows to register")
		}
		a.Owner().SetWindow(name, ids[len(ids)-1])
		return nil
	})
}

// SwitchWindow switches the session to a previously registered window.
func SwitchWindow(name string) *action.Single {
	return action.NewSingle("switch-window "+name, func(ctx context.Context, a *action.Single) error {
		id, ok := a.Owner().Window(name)
		if !ok {
			return fmt.Errorf("steps: window %q not registered", name)
		}
		return a.Owner().Session().SwitchWindow(ctx, id)
	})
}

// CloseWindow closes a previously registered window.
func CloseWindow(name string) *action.Single {
	return action.NewSingle("close-window "+name, func(ctx context.Context, a *action.Single) error {
		id, ok := a.Owner().Window(name)
		if !ok {
			return fmt.Errorf("steps: window %q not registered", name)
		}
		return a.Owner().Session().CloseWindow(ctx, id)
	})
}

// SetVar stores a fixed value in the workflow variable store.
func SetVar(key string, value any) *action.Single {
	return action.NewSingle("set-var "+key, func(ctx context.Context, a *action.Single) error {
		a.Owner().SetVar(key, value)
		return nil
	})
}

// Branch chooses between two child lists based on whether the locator
// resolves. A found element is positive; ErrNotFound is negative; a stale
// handle during the probe leaves the condition unevaluated for a retry.
func Branch(name string, loc capability.Locator) *action.Conditional {
	return action.NewConditional(name, func(ctx context.Context, c *action.Conditional) (any, error) {
		h, err := c.Owner().Session().Find(ctx, loc)
		if err != nil {
			if errors.Is(err, capability.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return h, nil
	})
}

// retryIfStale converts a recognized transient error into a logged retry
// (nil return without NoNextPhase); anything else propagates and fails the
// action.
func retryIfStale(ctx context.Context, name string, err error) error {
	if errors.Is(err, capability.ErrStaleHandle) {
		ctxlog.FromContext(ctx).Debug("Stale handle, retrying on next phase.", "step", name)
		return nil
	}
	return err
}
