// Package capability defines the shape of the remote-controlled session the
// engine drives. The scheduling core depends only on this interface; the
// concrete drivers live in their own packages and are swappable.
package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStaleHandle marks a handle that no longer points at a live element,
	// typically because the page re-rendered. It is the one transient,
	// retry-eligible failure: phase bodies that recognize it re-fetch and
	// retry on their next dispatch instead of failing the action.
	ErrStaleHandle = errors.New("capability: stale element handle")

	// ErrNotFound means the locator matched nothing.
	ErrNotFound = errors.New("capability: element not found")
)

// Handle is an opaque reference to an element inside a session. It is only
// valid for the session that produced it, and only until the underlying
// document changes.
type Handle string

// Strategy names a way of locating elements.
type Strategy string

const (
	ByCSS   Strategy = "css"
	ByXPath Strategy = "xpath"
	ByID    Strategy = "id"
	ByName  Strategy = "name"
)

// Locator pairs a strategy with its selector value.
type Locator struct {
	Strategy Strategy
	Value    string
}

// String renders the locator in "strategy:value" form.
func (l Locator) String() string {
	return string(l.Strategy) + ":" + l.Value
}

// ParseLocator parses "strategy:value" strings such as "css:#login" or
// "xpath://div[1]". A bare value defaults to the css strategy.
func ParseLocator(s string) (Locator, error) {
	strategy, value, ok := strings.Cut(s, ":")
	if !ok {
		return Locator{Strategy: ByCSS, Value: s}, nil
	}
	switch Strategy(strategy) {
	case ByCSS, ByXPath, ByID, ByName:
		return Locator{Strategy: Strategy(strategy), Value: value}, nil
	default:
		// "https://..." and friends contain a colon but no strategy prefix.
		if strings.Contains(value, "/") || value == "" {
			return Locator{Strategy: ByCSS, Value: s}, nil
		}
		return Locator{}, fmt.Errorf("capability: unknown locator strategy %q", strategy)
	}
}

// Session is the serial, non-thread-safe controllable resource. Exactly one
// phase touches a Session at a time; the dispatcher exists to guarantee that.
// All methods honor context cancellation on their transport.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Find(ctx context.Context, loc Locator) (Handle, error)
	Click(ctx context.Context, h Handle) error
	Type(ctx context.Context, h Handle, text string) error
	Attribute(ctx context.Context, h Handle, name string) (string, error)
	Text(ctx context.Context, h Handle) (string, error)

	// Windows enumerates the session's addressable sub-contexts.
	Windows(ctx context.Context) ([]string, error)
	SwitchWindow(ctx context.Context, id string) error
	CloseWindow(ctx context.Context, id string) error

	Close(ctx context.Context) error
}
