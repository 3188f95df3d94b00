package standardize

import (
	"context"
	"strings"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// Trim strips surrounding whitespace from a string Column, or from every
// string column when Column is empty. Fixed-width CHAR fields from SAP and
// JDE arrive space padded.
type Trim struct{ Column string }

func (t *Trim) Name() string { return "trim" }

func (t *Trim) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	for _, c := range stringColumns(f, t.Column) {
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				c.Set(i, strings.TrimSpace(v))
			}
		}
	}
	return f, nil
}

// stringColumns returns the named string column, or all string columns when
// name is empty. Missing and non-string columns are skipped.
func stringColumns(f *ef.Frame, name string) []*ef.StringColumn {
	names := []string{name}
	if name == "" {
		names = f.Schema().Names()
	}
	var out []*ef.StringColumn
	for _, n := range names {
		col, ok := f.ColumnByName(n)
		if !ok {
			continue
		}
		if c, ok := col.(*ef.StringColumn); ok {
			out = append(out, c)
		}
	}
	return out
}
