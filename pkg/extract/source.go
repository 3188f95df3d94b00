// Package extract pulls tabular data out of ERP databases and file exports
// into frames.
package extract

import (
	"context"
	"fmt"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// Source produces one frame per run.
type Source interface {
	Name() string
	Extract(ctx context.Context) (*ef.Frame, error)
}

// WithSteps wraps src so every extracted frame is passed through steps
// before it is returned.
func WithSteps(src Source, steps ...ef.Transform) Source {
	return &cleanedSource{Source: src, p: ef.NewPipeline(steps...)}
}

type cleanedSource struct {
	Source
	p *ef.Pipeline
}

func (s *cleanedSource) Extract(ctx context.Context) (*ef.Frame, error) {
	f, err := s.Source.Extract(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.p.Run(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("clean %s: %w", s.Name(), err)
	}
	return out, nil
}
