package validate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// InSet fails when a non-null value of Column is not in Values. Non-string
// cells are compared by their text form, so item numbers read as ints
// still match "1001".
type InSet struct {
	Column string
	Values map[string]struct{}
}

func NewInSet(col string, vals []string) *InSet {
	return &InSet{Column: col, Values: set(vals)}
}

func (t *InSet) Name() string { return "validate_in" }

func (t *InSet) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	return failOn(t, f)
}

func (t *InSet) issue(f *ef.Frame) (Issue, bool) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return Issue{}, false
	}
	var n int
	for i := 0; i < col.Len(); i++ {
		v := col.Value(i)
		if v == nil {
			continue
		}
		if _, ok := t.Values[cellText(v)]; !ok {
			n++
		}
	}
	return Issue{Column: t.Column, Rule: TypeInSet, Count: n,
		Detail: fmt.Sprintf("%s: %d values outside allowed set", t.Column, n)}, n > 0
}

func set(vals []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

func cellText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
