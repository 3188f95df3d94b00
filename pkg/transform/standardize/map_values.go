package standardize

import (
	"context"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// MapValues replaces exact string values, such as legacy entity codes.
type MapValues struct {
	Column string
	Map    map[string]string
}

func (t *MapValues) Name() string { return "map_values" }

func (t *MapValues) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	if t.Column == "" {
		return f, nil
	}
	for _, c := range stringColumns(f, t.Column) {
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Get(i)
			if !ok {
				continue
			}
			if nv, ok := t.Map[v]; ok {
				c.Set(i, nv)
			}
		}
	}
	return f, nil
}
