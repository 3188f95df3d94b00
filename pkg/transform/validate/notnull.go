package validate

import (
	"context"
	"fmt"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// NotNull fails when Column holds any null.
type NotNull struct{ Column string }

func (t *NotNull) Name() string { return "validate_not_null" }

func (t *NotNull) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	return failOn(t, f)
}

func (t *NotNull) issue(f *ef.Frame) (Issue, bool) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return Issue{}, false
	}
	n := countNulls(col)
	return Issue{Column: t.Column, Rule: TypeNotNull, Count: n,
		Detail: fmt.Sprintf("%s: %d null values", t.Column, n)}, n > 0
}

func countNulls(col ef.Column) int {
	var n int
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			n++
		}
	}
	return n
}
