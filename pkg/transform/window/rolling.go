package window

import (
	"context"
	"fmt"
	"math"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// RollingMean adds As, the mean of Column over the trailing Window rows
// (the current row included). Nulls and NaN are skipped; a row whose window
// holds fewer than MinPeriods such values gets a null. An infinite value
// makes the mean infinite only while it is inside the window.
type RollingMean struct {
	Column     string
	As         string
	Window     int
	MinPeriods int
}

func (t *RollingMean) Name() string { return "rolling_mean" }

func (t *RollingMean) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	if t.Window <= 0 {
		return nil, fmt.Errorf("rolling window must be positive, got %d", t.Window)
	}
	src, ok := f.ColumnByName(t.Column)
	if !ok {
		return nil, fmt.Errorf("no such column %s", t.Column)
	}
	if !src.Kind().Numeric() {
		return nil, fmt.Errorf("column %s is %v, want numeric", t.Column, src.Kind())
	}
	minp := t.MinPeriods
	if minp <= 0 {
		minp = t.Window
	}
	out := ef.NewFloatColumn(t.As, 0)
	var w window
	for i := 0; i < src.Len(); i++ {
		if v, ok := ef.Float(src, i); ok {
			w.add(v, 1)
		}
		if j := i - t.Window; j >= 0 {
			if v, ok := ef.Float(src, j); ok {
				w.add(v, -1)
			}
		}
		if w.n < minp || w.n == 0 {
			out.AppendNull()
			continue
		}
		out.Append(w.mean())
	}
	if err := f.AddColumn(out); err != nil {
		return nil, err
	}
	return f, nil
}

// window keeps the finite sum apart from infinities so a value leaving the
// window can be removed exactly.
type window struct {
	sum            float64
	n              int
	posInf, negInf int
}

func (w *window) add(v float64, sign int) {
	switch {
	case math.IsNaN(v):
		return
	case math.IsInf(v, 1):
		w.posInf += sign
	case math.IsInf(v, -1):
		w.negInf += sign
	default:
		w.sum += float64(sign) * v
	}
	w.n += sign
}

func (w *window) mean() float64 {
	switch {
	case w.posInf > 0 && w.negInf > 0:
		return math.NaN()
	case w.posInf > 0:
		return math.Inf(1)
	case w.negInf > 0:
		return math.Inf(-1)
	}
	return w.sum / float64(w.n)
}
