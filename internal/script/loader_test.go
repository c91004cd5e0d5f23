package script_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/phasegridgo/internal/action"
	"github.com/vk/phasegridgo/internal/flow"
	"github.com/vk/phasegridgo/internal/script"
)

// writeScript drops HCL source into a temp file and returns its path.
func writeScript(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))
	return path
}

func load(t *testing.T, src string) []*flow.Workflow {
	t.Helper()
	loader := script.NewLoader(script.NewRegistry())
	workflows, err := loader.LoadFiles(context.Background(), writeScript(t, "main.hcl", src))
	require.NoError(t, err)
	return workflows
}

func TestLoader_BuildsWorkflowWithSteps(t *testing.T) {
	t.Parallel()

	workflows := load(t, `
workflow "login" {
  priority = 3

  step "open" {
    action = "navigate"
    url    = "https://example.com/login"
  }

  step "user" {
    action  = "type"
    locator = "css:input[name=user]"
    text    = "alice"
  }

  step "submit" {
    action  = "click"
    locator = "css:#submit"
  }
}
`)

	require.Len(t, workflows, 1)
	wf := workflows[0]
	require.Equal(t, "login", wf.Name())
	require.Equal(t, 3, wf.Priority())

	children := wf.Root().Children()
	require.Len(t, children, 3)
	require.Equal(t, "navigate https://example.com/login", children[0].Name())
	require.Equal(t, "type css:input[name=user]", children[1].Name())
	require.Equal(t, "click css:#submit", children[2].Name())
}

func TestLoader_DefaultPriority(t *testing.T) {
	t.Parallel()

	workflows := load(t, `
workflow "plain" {
  step "open" {
    action = "navigate"
    url    = "https://example.com"
  }
}
`)
	require.Equal(t, 10, workflows[0].Priority())
}

func TestLoader_WhenBlockBuildsConditional(t *testing.T) {
	t.Parallel()

	workflows := load(t, `
workflow "cookies" {
  step "open" {
    action = "navigate"
    url    = "https://example.com"
  }

  when "banner" {
    locator = "css:#cookie-banner"

    then {
      step "dismiss" {
        action  = "click"
        locator = "css:#dismiss"
      }
    }

    else {
      step "note" {
        action = "set_var"
        key    = "banner"
        value  = "absent"
      }
    }
  }
}
`)

	children := workflows[0].Root().Children()
	require.Len(t, children, 2)

	cond, ok := children[1].(*action.Conditional)
	require.True(t, ok, "when block must build a conditional container")
	require.Equal(t, "banner", cond.Name())
	require.False(t, cond.Evaluated(), "the condition only resolves at run time")
}

func TestLoader_ContinueWithLinksWorkflows(t *testing.T) {
	t.Parallel()

	workflows := load(t, `
workflow "first" {
  continue_with = "second"

  step "open" {
    action = "navigate"
    url    = "https://example.com/1"
  }
}

workflow "second" {
  step "open" {
    action = "navigate"
    url    = "https://example.com/2"
  }
}
`)

	// Only the chain head is a root; the target runs as its continuation.
	require.Len(t, workflows, 1)
	first := workflows[0]
	require.Equal(t, "first", first.Name())
	require.NotNil(t, first.Continuation())
	require.Equal(t, "second", first.Continuation().Name())
}

func TestLoader_ContinueWithUnknownTarget(t *testing.T) {
	t.Parallel()

	loader := script.NewLoader(script.NewRegistry())
	_, err := loader.LoadFiles(context.Background(), writeScript(t, "main.hcl", `
workflow "first" {
  continue_with = "ghost"
}
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown workflow "ghost"`)
}

func TestLoader_ContinueWithSelf(t *testing.T) {
	t.Parallel()

	loader := script.NewLoader(script.NewRegistry())
	_, err := loader.LoadFiles(context.Background(), writeScript(t, "main.hcl", `
workflow "loop" {
  continue_with = "loop"
}
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot continue with itself")
}

func TestLoader_DuplicateWorkflowName(t *testing.T) {
	t.Parallel()

	loader := script.NewLoader(script.NewRegistry())
	_, err := loader.LoadFiles(context.Background(), writeScript(t, "main.hcl", `
workflow "dup" {}
workflow "dup" {}
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), `duplicate workflow "dup"`)
}

func TestLoader_UnknownActionKind(t *testing.T) {
	t.Parallel()

	loader := script.NewLoader(script.NewRegistry())
	_, err := loader.LoadFiles(context.Background(), writeScript(t, "main.hcl", `
workflow "bad" {
  step "mystery" {
    action = "teleport"
  }
}
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown action kind "teleport"`)
}

func TestLoader_MissingRequiredArgument(t *testing.T) {
	t.Parallel()

	loader := script.NewLoader(script.NewRegistry())
	_, err := loader.LoadFiles(context.Background(), writeScript(t, "main.hcl", `
workflow "bad" {
  step "open" {
    action = "navigate"
  }
}
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), `missing required argument "url"`)
}

func TestLoader_InvalidHCLIsRejected(t *testing.T) {
	t.Parallel()

	loader := script.NewLoader(script.NewRegistry())
	_, err := loader.LoadFiles(context.Background(), writeScript(t, "main.hcl", `
workflow "broken" {
  step "open" {
`))
	require.Error(t, err)
}

func TestLoader_LoadPathWalksDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), []byte(`
workflow "beta" {}
`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`
workflow "alpha" {}
`), 0600))

	loader := script.NewLoader(script.NewRegistry())
	workflows, err := loader.LoadPath(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, workflows, 2)
	require.Equal(t, "alpha", workflows[0].Name(), "files load in sorted order")
	require.Equal(t, "beta", workflows[1].Name())
}

func TestLoader_LoadPathEmptyDirectory(t *testing.T) {
	t.Parallel()

	loader := script.NewLoader(script.NewRegistry())
	_, err := loader.LoadPath(context.Background(), t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no .hcl scripts")
}

func TestRegistry_CustomKind(t *testing.T) {
	t.Parallel()

	reg := script.NewRegistry()
	reg.Register("pause", func(name string, args script.Args) (action.Action, error) {
		return action.NewSingle(name, func(ctx context.Context, a *action.Single) error {
			return nil
		}), nil
	})

	loader := script.NewLoader(reg)
	workflows, err := loader.LoadFiles(context.Background(), writeScript(t, "main.hcl", `
workflow "custom" {
  step "breather" {
    action = "pause"
  }
}
`))
	require.NoError(t, err)
	require.Len(t, workflows[0].Root().Children(), 1)
	require.Equal(t, "breather", workflows[0].Root().Children()[0].Name())
}
