package derive

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// PrefixLabel adds As = Match when Column starts with Prefix, else Otherwise.
// Null inputs get Otherwise.
type PrefixLabel struct {
	Column    string
	Prefix    string
	Match     string
	Otherwise string
	As        string
}

func (t *PrefixLabel) Name() string { return "prefix_label" }

func (t *PrefixLabel) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return nil, fmt.Errorf("no such column %s", t.Column)
	}
	sc, ok := col.(*ef.StringColumn)
	if !ok {
		return nil, fmt.Errorf("column %s is %v, want string", t.Column, col.Kind())
	}
	out := ef.NewStringColumn(t.As, 0)
	for i := 0; i < sc.Len(); i++ {
		v, ok := sc.Get(i)
		if ok && strings.HasPrefix(v, t.Prefix) {
			out.Append(t.Match)
			continue
		}
		out.Append(t.Otherwise)
	}
	return f, f.AddColumn(out)
}

// Bucket labels Column by right-closed bins: value v gets Labels[i] for the
// first i with v <= Edges[i], and the last label when v exceeds every edge.
// len(Labels) must be len(Edges)+1. Nulls and NaN get a null label.
type Bucket struct {
	Column string
	Edges  []float64
	Labels []string
	As     string
}

func (t *Bucket) Name() string { return "bucket" }

func (t *Bucket) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	if len(t.Labels) != len(t.Edges)+1 {
		return nil, fmt.Errorf("bucket %s: %d edges need %d labels, got %d", t.Column, len(t.Edges), len(t.Edges)+1, len(t.Labels))
	}
	if !sort.Float64sAreSorted(t.Edges) {
		return nil, fmt.Errorf("bucket %s: edges must increase", t.Column)
	}
	src, err := numeric(f, t.Column)
	if err != nil {
		return nil, err
	}
	out := ef.NewStringColumn(t.As, 0)
	for i := 0; i < f.Rows(); i++ {
		v, ok := ef.Float(src, i)
		if !ok || math.IsNaN(v) {
			out.AppendNull()
			continue
		}
		out.Append(t.Labels[sort.SearchFloat64s(t.Edges, v)])
	}
	return f, f.AddColumn(out)
}
