package script

import (
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/phasegridgo/internal/capability"
)

// Args holds a step block's evaluated attributes, minus the "action" kind
// selector. Builders pull their arguments out with the typed accessors.
type Args map[string]cty.Value

// String returns a required string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	if v.Type() != cty.String {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return v.AsString(), nil
}

// OptionalString returns a string argument or the fallback when absent.
func (a Args) OptionalString(key, fallback string) (string, error) {
	if _, ok := a[key]; !ok {
		return fallback, nil
	}
	return a.String(key)
}

// Locator parses a required "strategy:value" locator argument.
func (a Args) Locator(key string) (capability.Locator, error) {
	s, err := a.String(key)
	if err != nil {
		return capability.Locator{}, err
	}
	return capability.ParseLocator(s)
}

// Duration parses an optional Go duration string, e.g. "30s".
func (a Args) Duration(key string, fallback time.Duration) (time.Duration, error) {
	s, err := a.OptionalString(key, "")
	if err != nil {
		return 0, err
	}
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("argument %q: %w", key, err)
	}
	return d, nil
}

// Value returns a raw argument converted to a native Go value.
func (a Args) Value(key string) (any, error) {
	v, ok := a[key]
	if !ok {
		return nil, fmt.Errorf("missing required argument %q", key)
	}
	return ctyToGo(v), nil
}

// ctyToGo converts the primitive cty values scripts can express into their
// Go counterparts. Unknown or complex values pass through as cty.Value.
func ctyToGo(v cty.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Bool:
		return v.True()
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f
	default:
		return v
	}
}
