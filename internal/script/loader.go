package script

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/phasegridgo/internal/action"
	"github.com/vk/phasegridgo/internal/ctxlog"
	"github.com/vk/phasegridgo/internal/flow"
	"github.com/vk/phasegridgo/internal/fsutil"
	"github.com/vk/phasegridgo/internal/steps"
)

// defaultPriority applies to workflow blocks without an explicit priority.
const defaultPriority = 10

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "workflow", LabelNames: []string{"name"}},
	},
}

var workflowSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "priority"},
		{Name: "continue_with"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "step", LabelNames: []string{"name"}},
		{Type: "when", LabelNames: []string{"name"}},
	},
}

// branchSchema is the body of then/else blocks: steps and nested whens, no
// attributes.
var branchSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "step", LabelNames: []string{"name"}},
		{Type: "when", LabelNames: []string{"name"}},
	},
}

var whenSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "locator", Required: true},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "then"},
		{Type: "else"},
	},
}

// Loader turns .hcl script files into ready-to-submit workflows.
type Loader struct {
	registry *Registry
	parser   *hclparse.Parser
}

// NewLoader creates a loader resolving step kinds through reg.
func NewLoader(reg *Registry) *Loader {
	return &Loader{registry: reg, parser: hclparse.NewParser()}
}

// LoadPath loads every script under path (a single file or a directory tree)
// and returns the root workflows: workflows referenced by another workflow's
// continue_with are linked as continuations and not returned at top level.
func (l *Loader) LoadPath(ctx context.Context, path string) ([]*flow.Workflow, error) {
	files, err := fsutil.FindScripts(path)
	if err != nil {
		return nil, fmt.Errorf("script: resolving %q: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("script: no .hcl scripts under %q", path)
	}
	return l.LoadFiles(ctx, files...)
}

// LoadFiles parses and builds the given script files.
func (l *Loader) LoadFiles(ctx context.Context, paths ...string) ([]*flow.Workflow, error) {
	logger := ctxlog.FromContext(ctx)

	workflows := make(map[string]*flow.Workflow)
	continuations := make(map[string]string)
	var order []string

	for _, path := range paths {
		file, diags := l.parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, diags
		}
		content, diags := file.Body.Content(fileSchema)
		if diags.HasErrors() {
			return nil, diags
		}
		for _, block := range content.Blocks {
			wf, next, err := l.buildWorkflow(block)
			if err != nil {
				return nil, err
			}
			if _, dup := workflows[wf.Name()]; dup {
				return nil, fmt.Errorf("script: duplicate workflow %q at %s", wf.Name(), block.DefRange)
			}
			workflows[wf.Name()] = wf
			order = append(order, wf.Name())
			if next != "" {
				continuations[wf.Name()] = next
			}
			logger.Debug("Loaded workflow.", "workflow", wf.Name(), "file", path)
		}
	}

	// Link continuation chains; linked targets are no longer roots.
	linked := make(map[string]bool)
	for name, next := range continuations {
		target, ok := workflows[next]
		if !ok {
			return nil, fmt.Errorf("script: workflow %q continues with unknown workflow %q", name, next)
		}
		if next == name {
			return nil, fmt.Errorf("script: workflow %q cannot continue with itself", name)
		}
		workflows[name].ContinueWith(target)
		linked[next] = true
	}

	var roots []*flow.Workflow
	for _, name := range order {
		if !linked[name] {
			roots = append(roots, workflows[name])
		}
	}
	return roots, nil
}

// buildWorkflow assembles one workflow block. The second return value is the
// continue_with target name, if any.
func (l *Loader) buildWorkflow(block *hcl.Block) (*flow.Workflow, string, error) {
	name := block.Labels[0]
	content, diags := block.Body.Content(workflowSchema)
	if diags.HasErrors() {
		return nil, "", diags
	}

	priority := defaultPriority
	if attr, ok := content.Attributes["priority"]; ok {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, "", diags
		}
		if v.Type() != cty.Number {
			return nil, "", fmt.Errorf("script: priority of workflow %q must be a number", name)
		}
		p, _ := v.AsBigFloat().Int64()
		priority = int(p)
	}

	next := ""
	if attr, ok := content.Attributes["continue_with"]; ok {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, "", diags
		}
		next = v.AsString()
	}

	wf := flow.New(name, priority)
	children, err := l.buildActions(content)
	if err != nil {
		return nil, "", fmt.Errorf("script: workflow %q: %w", name, err)
	}
	for _, child := range children {
		wf.Add(child)
	}
	return wf, next, nil
}

// buildActions builds the step and when blocks of a body in source order.
func (l *Loader) buildActions(content *hcl.BodyContent) ([]action.Action, error) {
	var out []action.Action
	for _, block := range content.Blocks {
		var (
			a   action.Action
			err error
		)
		switch block.Type {
		case "step":
			a, err = l.buildStep(block)
		case "when":
			a, err = l.buildWhen(block)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (l *Loader) buildStep(block *hcl.Block) (action.Action, error) {
	name := block.Labels[0]
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	args := make(Args, len(attrs))
	for attrName, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		args[attrName] = v
	}

	kind, err := args.String("action")
	if err != nil {
		return nil, fmt.Errorf("step %q at %s: %w", name, block.DefRange, err)
	}
	delete(args, "action")

	a, err := l.registry.Build(kind, name, args)
	if err != nil {
		return nil, fmt.Errorf("step %q at %s: %w", name, block.DefRange, err)
	}
	return a, nil
}

func (l *Loader) buildWhen(block *hcl.Block) (action.Action, error) {
	name := block.Labels[0]
	content, diags := block.Body.Content(whenSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	args := Args{}
	v, diags := content.Attributes["locator"].Expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	args["locator"] = v
	loc, err := args.Locator("locator")
	if err != nil {
		return nil, fmt.Errorf("when %q at %s: %w", name, block.DefRange, err)
	}

	cond := steps.Branch(name, loc)
	for _, branch := range content.Blocks {
		branchContent, diags := branch.Body.Content(branchSchema)
		if diags.HasErrors() {
			return nil, diags
		}
		children, err := l.buildActions(branchContent)
		if err != nil {
			return nil, fmt.Errorf("when %q at %s: %w", name, block.DefRange, err)
		}
		switch branch.Type {
		case "then":
			cond.Then(children...)
		case "else":
			cond.Else(children...)
		}
	}
	return cond, nil
}
