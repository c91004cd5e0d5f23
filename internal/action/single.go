package action

import "context"

// Single wraps a body that runs exactly once. NoNextPhase is forced after the
// one invocation regardless of outcome, so a Single only ever ends in
// Complete or CompleteWithError. It models one-shot operations such as
// navigate or a simple click.
type Single struct {
	Base
	body func(ctx context.Context, a *Single) error
}

// NewSingle builds a one-shot action around body.
func NewSingle(name string, body func(ctx context.Context, a *Single) error) *Single {
	return &Single{Base: newBase(name), body: body}
}

// RunPhase implements Action.
func (s *Single) RunPhase(ctx context.Context) {
	s.execute(ctx, func(ctx context.Context) error {
		defer s.NoNextPhase()
		return s.body(ctx, s)
	})
}
