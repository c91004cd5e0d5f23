package script

import (
	"fmt"
	"time"

	"github.com/vk/phasegridgo/internal/action"
	"github.com/vk/phasegridgo/internal/steps"
)

// defaultWaitDeadline bounds wait_for steps that give no timeout.
const defaultWaitDeadline = 30 * time.Second

// BuilderFunc builds one action from a step block's label and arguments.
type BuilderFunc func(name string, args Args) (action.Action, error)

// Registry maps step action kinds to their builders. Loaders resolve every
// step through a registry, so embedders can register kinds of their own.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry returns a registry pre-populated with the built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]BuilderFunc)}
	r.registerCoreKinds()
	return r
}

// Register adds or replaces the builder for a kind.
func (r *Registry) Register(kind string, f BuilderFunc) {
	r.builders[kind] = f
}

// Build resolves a kind and invokes its builder.
func (r *Registry) Build(kind, name string, args Args) (action.Action, error) {
	builder, ok := r.builders[kind]
	if !ok {
		return nil, fmt.Errorf("script: unknown action kind %q", kind)
	}
	return builder(name, args)
}

func (r *Registry) registerCoreKinds() {
	r.Register("navigate", func(name string, args Args) (action.Action, error) {
		url, err := args.String("url")
		if err != nil {
			return nil, err
		}
		return steps.Navigate(url), nil
	})

	r.Register("click", func(name string, args Args) (action.Action, error) {
		loc, err := args.Locator("locator")
		if err != nil {
			return nil, err
		}
		return steps.Click(loc), nil
	})

	r.Register("type", func(name string, args Args) (action.Action, error) {
		loc, err := args.Locator("locator")
		if err != nil {
			return nil, err
		}
		text, err := args.String("text")
		if err != nil {
			return nil, err
		}
		return steps.TypeText(loc, text), nil
	})

	r.Register("read_text", func(name string, args Args) (action.Action, error) {
		loc, err := args.Locator("locator")
		if err != nil {
			return nil, err
		}
		into, err := args.String("into")
		if err != nil {
			return nil, err
		}
		return steps.ReadText(loc, into), nil
	})

	r.Register("read_attribute", func(name string, args Args) (action.Action, error) {
		loc, err := args.Locator("locator")
		if err != nil {
			return nil, err
		}
		attr, err := args.String("attribute")
		if err != nil {
			return nil, err
		}
		into, err := args.String("into")
		if err != nil {
			return nil, err
		}
		return steps.ReadAttribute(loc, attr, into), nil
	})

	r.Register("wait_for", func(name string, args Args) (action.Action, error) {
		loc, err := args.Locator("locator")
		if err != nil {
			return nil, err
		}
		deadline, err := args.Duration("timeout", defaultWaitDeadline)
		if err != nil {
			return nil, err
		}
		return steps.WaitFor(loc, deadline), nil
	})

	r.Register("register_window", func(name string, args Args) (action.Action, error) {
		window, err := args.String("window")
		if err != nil {
			return nil, err
		}
		return steps.RegisterWindow(window), nil
	})

	r.Register("switch_window", func(name string, args Args) (action.Action, error) {
		window, err := args.String("window")
		if err != nil {
			return nil, err
		}
		return steps.SwitchWindow(window), nil
	})

	r.Register("close_window", func(name string, args Args) (action.Action, error) {
		window, err := args.String("window")
		if err != nil {
			return nil, err
		}
		return steps.CloseWindow(window), nil
	})

	r.Register("set_var", func(name string, args Args) (action.Action, error) {
		key, err := args.String("key")
		if err != nil {
			return nil, err
		}
		value, err := args.Value("value")
		if err != nil {
			return nil, err
		}
		return steps.SetVar(key, value), nil
	})
}
