// Package webdriver implements capability.Session against a W3C WebDriver
// remote end (chromedriver, geckodriver, a Selenium grid). It is a thin
// external collaborator: the scheduling core never imports it.
package webdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"resty.dev/v3"

	"github.com/vk/phasegridgo/internal/capability"
)

// elementKey is the W3C web element identifier key.
const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// envelope is the WebDriver response wrapper: every reply nests its payload
// under "value".
type envelope struct {
	Value json.RawMessage `json:"value"`
}

type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Session is one live WebDriver session.
type Session struct {
	client    *resty.Client
	sessionID string
}

var _ capability.Session = (*Session)(nil)

// New opens a session against the remote end at baseURL, e.g.
// "http://localhost:9515".
func New(ctx context.Context, baseURL string) (*Session, error) {
	client := resty.New().SetBaseURL(baseURL)

	var created struct {
		SessionID string `json:"sessionId"`
	}
	s := &Session{client: client}
	body := map[string]any{
		"capabilities": map[string]any{"alwaysMatch": map[string]any{}},
	}
	if err := s.do(ctx, http.MethodPost, "/session", body, &created); err != nil {
		client.Close()
		return nil, fmt.Errorf("webdriver: creating session: %w", err)
	}
	s.sessionID = created.SessionID
	return s, nil
}

// Navigate implements capability.Session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.do(ctx, http.MethodPost, s.path("/url"), map[string]any{"url": url}, nil)
}

// Find implements capability.Session.
func (s *Session) Find(ctx context.Context, loc capability.Locator) (capability.Handle, error) {
	using, value, err := wireLocator(loc)
	if err != nil {
		return "", err
	}
	var found map[string]string
	err = s.do(ctx, http.MethodPost, s.path("/element"),
		map[string]any{"using": using, "value": value}, &found)
	if err != nil {
		return "", err
	}
	id, ok := found[elementKey]
	if !ok {
		return "", fmt.Errorf("webdriver: malformed element reply for %s", loc)
	}
	return capability.Handle(id), nil
}

// Click implements capability.Session.
func (s *Session) Click(ctx context.Context, h capability.Handle) error {
	return s.do(ctx, http.MethodPost, s.elementPath(h, "/click"), map[string]any{}, nil)
}

// Type implements capability.Session.
func (s *Session) Type(ctx context.Context, h capability.Handle, text string) error {
	return s.do(ctx, http.MethodPost, s.elementPath(h, "/value"), map[string]any{"text": text}, nil)
}

// Attribute implements capability.Session.
func (s *Session) Attribute(ctx context.Context, h capability.Handle, name string) (string, error) {
	var value string
	err := s.do(ctx, http.MethodGet, s.elementPath(h, "/attribute/"+name), nil, &value)
	return value, err
}

// Text implements capability.Session.
func (s *Session) Text(ctx context.Context, h capability.Handle) (string, error) {
	var value string
	err := s.do(ctx, http.MethodGet, s.elementPath(h, "/text"), nil, &value)
	return value, err
}

// Windows implements capability.Session.
func (s *Session) Windows(ctx context.Context) ([]string, error) {
	var handles []string
	err := s.do(ctx, http.MethodGet, s.path("/window/handles"), nil, &handles)
	return handles, err
}

// SwitchWindow implements capability.Session.
func (s *Session) SwitchWindow(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodPost, s.path("/window"), map[string]any{"handle": id}, nil)
}

// CloseWindow implements capability.Session. WebDriver closes the current
// window, so this switches first.
func (s *Session) CloseWindow(ctx context.Context, id string) error {
	if err := s.SwitchWindow(ctx, id); err != nil {
		return err
	}
	return s.do(ctx, http.MethodDelete, s.path("/window"), nil, nil)
}

// Close ends the session and releases the HTTP client.
func (s *Session) Close(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.path(""), nil, nil)
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Session) path(suffix string) string {
	return "/session/" + s.sessionID + suffix
}

func (s *Session) elementPath(h capability.Handle, suffix string) string {
	return s.path("/element/" + string(h) + suffix)
}

// do executes one WebDriver request and decodes the "value" payload into
// out, mapping protocol errors onto the capability error taxonomy.
func (s *Session) do(ctx context.Context, method, path string, body, out any) error {
	req := s.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	res, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("webdriver: %s %s: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(res.Bytes(), &env); err != nil {
		return fmt.Errorf("webdriver: %s %s: decoding reply: %w", method, path, err)
	}

	if res.StatusCode() >= 400 {
		var werr wireError
		if err := json.Unmarshal(env.Value, &werr); err != nil {
			return fmt.Errorf("webdriver: %s %s: HTTP %d", method, path, res.StatusCode())
		}
		return mapError(werr)
	}

	if out != nil {
		if err := json.Unmarshal(env.Value, out); err != nil {
			return fmt.Errorf("webdriver: %s %s: decoding value: %w", method, path, err)
		}
	}
	return nil
}

// mapError translates WebDriver error codes into the capability sentinels the
// engine's retry policy keys on.
func mapError(werr wireError) error {
	switch werr.Error {
	case "stale element reference":
		return fmt.Errorf("%w: %s", capability.ErrStaleHandle, werr.Message)
	case "no such element":
		return fmt.Errorf("%w: %s", capability.ErrNotFound, werr.Message)
	default:
		return fmt.Errorf("webdriver: %s: %s", werr.Error, werr.Message)
	}
}

// wireLocator maps a capability locator onto a W3C location strategy. The id
// and name strategies have no wire equivalent and lower onto css selectors.
func wireLocator(loc capability.Locator) (using, value string, err error) {
	switch loc.Strategy {
	case capability.ByCSS:
		return "css selector", loc.Value, nil
	case capability.ByXPath:
		return "xpath", loc.Value, nil
	case capability.ByID:
		return "css selector", "#" + loc.Value, nil
	case capability.ByName:
		return "css selector", fmt.Sprintf("[name=%q]", loc.Value), nil
	default:
		return "", "", fmt.Errorf("webdriver: unsupported locator strategy %q", loc.Strategy)
	}
}
