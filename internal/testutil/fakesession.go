package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/phasegridgo/internal/capability"
)

// FakeElement is one scripted element in a FakeSession. The Stale* and
// AppearAfter knobs simulate the transient conditions real pages produce.
type FakeElement struct {
	Text  string
	Attrs map[string]string

	// AppearAfter makes Find return ErrNotFound for the first N attempts,
	// simulating an element that renders late.
	AppearAfter int
	// StaleClicks makes the first N clicks fail with ErrStaleHandle,
	// simulating a re-render between find and click.
	StaleClicks int

	finds  int
	clicks int
	typed  []string
}

// FakeSession is a scripted capability.Session for tests. Handles are the
// locator strings that produced them.
type FakeSession struct {
	mu       sync.Mutex
	elements map[string]*FakeElement
	windows  []string
	current  string
	calls    []string
	closed   bool
}

var _ capability.Session = (*FakeSession)(nil)

// NewFakeSession returns an empty fake with one window, "main".
func NewFakeSession() *FakeSession {
	return &FakeSession{
		elements: make(map[string]*FakeElement),
		windows:  []string{"main"},
		current:  "main",
	}
}

// AddElement scripts an element for the given locator.
func (s *FakeSession) AddElement(loc capability.Locator, el *FakeElement) *FakeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el.Attrs == nil {
		el.Attrs = make(map[string]string)
	}
	s.elements[loc.String()] = el
	return s
}

// AddWindow scripts an additional window id.
func (s *FakeSession) AddWindow(id string) *FakeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, id)
	return s
}

// Calls returns the ordered log of session operations.
func (s *FakeSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Clicks reports how many clicks landed on the element.
func (s *FakeSession) Clicks(loc capability.Locator) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.elements[loc.String()]; ok {
		return el.clicks
	}
	return 0
}

// Typed returns everything typed into the element.
func (s *FakeSession) Typed(loc capability.Locator) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.elements[loc.String()]; ok {
		return append([]string{}, el.typed...)
	}
	return nil
}

// CurrentWindow reports the active window id.
func (s *FakeSession) CurrentWindow() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Closed reports whether Close was called.
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *FakeSession) record(format string, args ...any) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

// Navigate implements capability.Session.
func (s *FakeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("navigate %s", url)
	return nil
}

// Find implements capability.Session.
func (s *FakeSession) Find(ctx context.Context, loc capability.Locator) (capability.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("find %s", loc)
	el, ok := s.elements[loc.String()]
	if !ok {
		return "", fmt.Errorf("%w: %s", capability.ErrNotFound, loc)
	}
	el.finds++
	if el.finds <= el.AppearAfter {
		return "", fmt.Errorf("%w: %s", capability.ErrNotFound, loc)
	}
	return capability.Handle(loc.String()), nil
}

// Click implements capability.Session.
func (s *FakeSession) Click(ctx context.Context, h capability.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("click %s", h)
	el, ok := s.elements[string(h)]
	if !ok {
		return fmt.Errorf("%w: %s", capability.ErrStaleHandle, h)
	}
	if el.StaleClicks > 0 {
		el.StaleClicks--
		return fmt.Errorf("%w: %s", capability.ErrStaleHandle, h)
	}
	el.clicks++
	return nil
}

// Type implements capability.Session.
func (s *FakeSession) Type(ctx context.Context, h capability.Handle, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("type %s", h)
	el, ok := s.elements[string(h)]
	if !ok {
		return fmt.Errorf("%w: %s", capability.ErrStaleHandle, h)
	}
	el.typed = append(el.typed, text)
	return nil
}

// Attribute implements capability.Session.
func (s *FakeSession) Attribute(ctx context.Context, h capability.Handle, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("attribute %s %s", h, name)
	el, ok := s.elements[string(h)]
	if !ok {
		return "", fmt.Errorf("%w: %s", capability.ErrStaleHandle, h)
	}
	return el.Attrs[name], nil
}

// Text implements capability.Session.
func (s *FakeSession) Text(ctx context.Context, h capability.Handle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("text %s", h)
	el, ok := s.elements[string(h)]
	if !ok {
		return "", fmt.Errorf("%w: %s", capability.ErrStaleHandle, h)
	}
	return el.Text, nil
}

// Windows implements capability.Session.
func (s *FakeSession) Windows(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("windows")
	return append([]string{}, s.windows...), nil
}

// SwitchWindow implements capability.Session.
func (s *FakeSession) SwitchWindow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("switch-window %s", id)
	for _, w := range s.windows {
		if w == id {
			s.current = id
			return nil
		}
	}
	return fmt.Errorf("%w: window %s", capability.ErrNotFound, id)
}

// CloseWindow implements capability.Session.
func (s *FakeSession) CloseWindow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("close-window %s", id)
	for i, w := range s.windows {
		if w == id {
			s.windows = append(s.windows[:i], s.windows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: window %s", capability.ErrNotFound, id)
}

// Close implements capability.Session.
func (s *FakeSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("close")
	s.closed = true
	return nil
}
