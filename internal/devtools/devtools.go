// Package devtools implements capability.Session over the Chrome DevTools
// protocol: JSON commands with matched response ids on a single websocket.
// Like webdriver, it is a collaborator outside the scheduling core.
package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vk/phasegridgo/internal/capability"
)

// request is one protocol command.
type request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// response is a command reply or an event; events carry no id and are
// skipped while waiting for a reply.
type response struct {
	ID     int64           `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result"`
	Error  *wireError      `json:"error"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Session is one DevTools page connection.
type Session struct {
	// mu serializes commands on the socket. The dispatcher already ensures
	// one phase at a time; this guards direct callers too.
	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int64
}

var _ capability.Session = (*Session)(nil)

// Dial connects to a page's websocket debugger URL, e.g.
// "ws://localhost:9222/devtools/page/<id>".
func Dial(ctx context.Context, wsURL string) (*Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("devtools: dialing %s: %w", wsURL, err)
	}
	return &Session{conn: conn}, nil
}

// call sends one command and reads frames until its reply arrives.
func (s *Session) call(ctx context.Context, method string, params any, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
		_ = s.conn.SetWriteDeadline(deadline)
	}
	if err := s.conn.WriteJSON(request{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("devtools: %s: %w", method, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var resp response
		if err := s.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("devtools: %s: %w", method, err)
		}
		if resp.ID != id {
			// Event or reply to an earlier, abandoned command.
			continue
		}
		if resp.Error != nil {
			return mapError(method, resp.Error)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("devtools: %s: decoding result: %w", method, err)
			}
		}
		return nil
	}
}

// mapError translates protocol errors into the capability taxonomy. A
// vanished remote object is the protocol's stale-handle condition.
func mapError(method string, werr *wireError) error {
	if strings.Contains(werr.Message, "Could not find object") ||
		strings.Contains(werr.Message, "Cannot find context") {
		return fmt.Errorf("%w: %s", capability.ErrStaleHandle, werr.Message)
	}
	return fmt.Errorf("devtools: %s: %s (code %d)", method, werr.Message, werr.Code)
}

// remoteObject is the subset of Runtime.RemoteObject this driver needs.
type remoteObject struct {
	ObjectID string          `json:"objectId"`
	Subtype  string          `json:"subtype"`
	Value    json.RawMessage `json:"value"`
}

// Navigate implements capability.Session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.call(ctx, "Page.navigate", map[string]any{"url": url}, nil)
}

// Find implements capability.Session. The handle is the remote object id of
// the matched DOM node; it goes stale when the document is replaced.
func (s *Session) Find(ctx context.Context, loc capability.Locator) (capability.Handle, error) {
	expr, err := findExpression(loc)
	if err != nil {
		return "", err
	}
	var result struct {
		Result remoteObject `json:"result"`
	}
	err = s.call(ctx, "Runtime.evaluate", map[string]any{"expression": expr}, &result)
	if err != nil {
		return "", err
	}
	if result.Result.ObjectID == "" || result.Result.Subtype == "null" {
		return "", fmt.Errorf("%w: %s", capability.ErrNotFound, loc)
	}
	return capability.Handle(result.Result.ObjectID), nil
}

// Click implements capability.Session.
func (s *Session) Click(ctx context.Context, h capability.Handle) error {
	return s.callOn(ctx, h, "function() { this.click(); }", nil, nil)
}

// Type implements capability.Session.
func (s *Session) Type(ctx context.Context, h capability.Handle, text string) error {
	fn := `function(text) {
		this.value = text;
		this.dispatchEvent(new Event("input", { bubbles: true }));
		this.dispatchEvent(new Event("change", { bubbles: true }));
	}`
	return s.callOn(ctx, h, fn, []any{text}, nil)
}

// Attribute implements capability.Session.
func (s *Session) Attribute(ctx context.Context, h capability.Handle, name string) (string, error) {
	var value string
	err := s.callOn(ctx, h, "function(n) { return this.getAttribute(n) || \"\"; }", []any{name}, &value)
	return value, err
}

// Text implements capability.Session.
func (s *Session) Text(ctx context.Context, h capability.Handle) (string, error) {
	var value string
	err := s.callOn(ctx, h, "function() { return this.textContent; }", nil, &value)
	return value, err
}

// Windows implements capability.Session, enumerating page targets.
func (s *Session) Windows(ctx context.Context) ([]string, error) {
	var result struct {
		TargetInfos []struct {
			TargetID string `json:"targetId"`
			Type     string `json:"type"`
		} `json:"targetInfos"`
	}
	if err := s.call(ctx, "Target.getTargets", map[string]any{}, &result); err != nil {
		return nil, err
	}
	var ids []string
	for _, t := range result.TargetInfos {
		if t.Type == "page" {
			ids = append(ids, t.TargetID)
		}
	}
	return ids, nil
}

// SwitchWindow implements capability.Session.
func (s *Session) SwitchWindow(ctx context.Context, id string) error {
	return s.call(ctx, "Target.activateTarget", map[string]any{"targetId": id}, nil)
}

// CloseWindow implements capability.Session.
func (s *Session) CloseWindow(ctx context.Context, id string) error {
	return s.call(ctx, "Target.closeTarget", map[string]any{"targetId": id}, nil)
}

// Close implements capability.Session.
func (s *Session) Close(ctx context.Context) error {
	return s.conn.Close()
}

// callOn invokes a function on a remote object, unmarshalling its returned
// value into out when non-nil.
func (s *Session) callOn(ctx context.Context, h capability.Handle, fn string, args []any, out any) error {
	params := map[string]any{
		"objectId":            string(h),
		"functionDeclaration": fn,
		"returnByValue":       true,
	}
	if len(args) > 0 {
		wrapped := make([]map[string]any, len(args))
		for i, a := range args {
			wrapped[i] = map[string]any{"value": a}
		}
		params["arguments"] = wrapped
	}
	var result struct {
		Result remoteObject `json:"result"`
	}
	if err := s.call(ctx, "Runtime.callFunctionOn", params, &result); err != nil {
		return err
	}
	if out != nil && result.Result.Value != nil {
		if err := json.Unmarshal(result.Result.Value, out); err != nil {
			return fmt.Errorf("devtools: decoding call result: %w", err)
		}
	}
	return nil
}

// findExpression builds the JS expression that resolves a locator to a node.
func findExpression(loc capability.Locator) (string, error) {
	switch loc.Strategy {
	case capability.ByCSS:
		return fmt.Sprintf("document.querySelector(%q)", loc.Value), nil
	case capability.ByID:
		return fmt.Sprintf("document.getElementById(%q)", loc.Value), nil
	case capability.ByName:
		return fmt.Sprintf("document.querySelector('[name=%s]')", jsQuote(loc.Value)), nil
	case capability.ByXPath:
		return fmt.Sprintf(
			"document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue",
			loc.Value), nil
	default:
		return "", fmt.Errorf("devtools: unsupported locator strategy %q", loc.Strategy)
	}
}

func jsQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
