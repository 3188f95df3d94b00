package standardize

import (
	"context"
	"fmt"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// Fill replaces nulls in Column with Value, coerced to the column's kind.
// Missing columns are left alone.
type Fill struct {
	Column string
	Value  any
}

func (t *Fill) Name() string { return "fill" }

func (t *Fill) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return f, nil
	}
	v, err := coerce(col.Kind(), t.Value)
	if err != nil {
		return nil, fmt.Errorf("fill %s: %w", t.Column, err)
	}
	for i := 0; i < f.Rows(); i++ {
		if col.IsNull(i) {
			if err := f.SetCell(i, t.Column, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// coerce converts config scalars (YAML ints, TOML int64s, floats, strings)
// to the value type a column of kind k accepts.
func coerce(k ef.Kind, v any) (any, error) {
	switch k {
	case ef.KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		}
	case ef.KindFloat:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		}
	case ef.KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case ef.KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("cannot fill %v column with %T", k, v)
}
