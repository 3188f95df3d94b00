package derive

import (
	"context"
	"fmt"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// Product adds As = Left * Right. A null operand yields a null.
type Product struct {
	Left, Right string
	As          string
}

func (t *Product) Name() string { return "product" }

func (t *Product) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	l, err := numeric(f, t.Left)
	if err != nil {
		return nil, err
	}
	r, err := numeric(f, t.Right)
	if err != nil {
		return nil, err
	}
	out := ef.NewFloatColumn(t.As, 0)
	for i := 0; i < f.Rows(); i++ {
		a, ok1 := ef.Float(l, i)
		b, ok2 := ef.Float(r, i)
		if !ok1 || !ok2 {
			out.AppendNull()
			continue
		}
		out.Append(a * b)
	}
	return f, f.AddColumn(out)
}

// Scale adds As = Column * Factor.
type Scale struct {
	Column string
	Factor float64
	As     string
}

func (t *Scale) Name() string { return "scale" }

func (t *Scale) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	src, err := numeric(f, t.Column)
	if err != nil {
		return nil, err
	}
	out := ef.NewFloatColumn(t.As, 0)
	for i := 0; i < f.Rows(); i++ {
		v, ok := ef.Float(src, i)
		if !ok {
			out.AppendNull()
			continue
		}
		out.Append(v * t.Factor)
	}
	return f, f.AddColumn(out)
}

// Percent adds As = 100 * Numerator / (product of Denominators). Division
// follows IEEE semantics: a zero denominator gives ±Inf or NaN.
type Percent struct {
	Numerator    string
	Denominators []string
	As           string
}

func (t *Percent) Name() string { return "percent" }

func (t *Percent) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	num, err := numeric(f, t.Numerator)
	if err != nil {
		return nil, err
	}
	dens := make([]ef.Column, len(t.Denominators))
	for i, d := range t.Denominators {
		if dens[i], err = numeric(f, d); err != nil {
			return nil, err
		}
	}
	out := ef.NewFloatColumn(t.As, 0)
rows:
	for i := 0; i < f.Rows(); i++ {
		n, ok := ef.Float(num, i)
		if !ok {
			out.AppendNull()
			continue
		}
		den := 1.0
		for _, c := range dens {
			v, ok := ef.Float(c, i)
			if !ok {
				out.AppendNull()
				continue rows
			}
			den *= v
		}
		out.Append(n / den * 100)
	}
	return f, f.AddColumn(out)
}

func numeric(f *ef.Frame, name string) (ef.Column, error) {
	c, ok := f.ColumnByName(name)
	if !ok {
		return nil, fmt.Errorf("no such column %s", name)
	}
	if !c.Kind().Numeric() {
		return nil, fmt.Errorf("column %s is %v, want numeric", name, c.Kind())
	}
	return c, nil
}
