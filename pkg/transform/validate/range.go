package validate

import (
	"context"
	"fmt"
	"strconv"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// Range fails when any non-null value of Column lies outside [Min, Max].
// A nil bound is open. Every non-null value of a non-numeric column fails.
type Range struct {
	Column string
	Min    *float64
	Max    *float64
}

func (t *Range) Name() string { return "validate_range" }

func (t *Range) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	return failOn(t, f)
}

func (t *Range) issue(f *ef.Frame) (Issue, bool) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return Issue{}, false
	}
	if !col.Kind().Numeric() {
		n := col.Len() - countNulls(col)
		return Issue{Column: t.Column, Rule: TypeRange, Count: n,
			Detail: fmt.Sprintf("%s: %d %v values cannot satisfy a range rule", t.Column, n, col.Kind())}, n > 0
	}
	n := countOutOfRange(col, t.Min, t.Max)
	return Issue{Column: t.Column, Rule: TypeRange, Count: n,
		Detail: fmt.Sprintf("%s: %d values out of range [%s, %s]", t.Column, n, bound(t.Min, "-inf"), bound(t.Max, "inf"))}, n > 0
}

func countOutOfRange(col ef.Column, min, max *float64) int {
	var bad int
	for i := 0; i < col.Len(); i++ {
		v, ok := ef.Float(col, i)
		if !ok {
			continue
		}
		if (min != nil && v < *min) || (max != nil && v > *max) {
			bad++
		}
	}
	return bad
}

func bound(p *float64, open string) string {
	if p == nil {
		return open
	}
	return strconv.FormatFloat(*p, 'g', -1, 64)
}
