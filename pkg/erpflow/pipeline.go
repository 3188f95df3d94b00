package erpflow

import (
	"context"
	"fmt"
)

// Transform is a derivation or check applied to a Frame. Implementations
// may mutate the input and return it, or return a new Frame.
type Transform interface {
	Name() string
	Apply(ctx context.Context, f *Frame) (*Frame, error)
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc struct {
	Label string
	Fn    func(ctx context.Context, f *Frame) (*Frame, error)
}

func (t TransformFunc) Name() string { return t.Label }

func (t TransformFunc) Apply(ctx context.Context, f *Frame) (*Frame, error) { return t.Fn(ctx, f) }

// Pipeline composes a sequence of Transforms.
type Pipeline struct {
	steps []Transform
}

func NewPipeline(steps ...Transform) *Pipeline { return &Pipeline{steps: steps} }

func (p *Pipeline) Add(t Transform) *Pipeline {
	p.steps = append(p.steps, t)
	return p
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	out := make([]string, len(p.steps))
	for i, t := range p.steps {
		out[i] = t.Name()
	}
	return out
}

// Run applies each step in order, stopping at the first error or when ctx
// is done.
func (p *Pipeline) Run(ctx context.Context, f *Frame) (*Frame, error) {
	var err error
	cur := f
	for _, t := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur, err = t.Apply(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name(), err)
		}
	}
	return cur, nil
}
