package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// Func names a reducer applied to the rows of one group.
type Func string

const (
	Sum   Func = "sum"
	Mean  Func = "mean"
	First Func = "first"
)

// Agg reduces Column within each group into the output column As
// (defaults to Column).
type Agg struct {
	Column string
	Func   Func
	As     string
}

func (a Agg) out() string {
	if a.As != "" {
		return a.As
	}
	return a.Column
}

// GroupBy collapses rows sharing the same Keys into one row. Rows with a
// null key are dropped. Groups are emitted in ascending key order; the
// output holds the key columns followed by one column per Agg.
type GroupBy struct {
	Keys []string
	Aggs []Agg
}

func (t *GroupBy) Name() string { return "group_by(" + strings.Join(t.Keys, ",") + ")" }

func (t *GroupBy) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	keyCols := make([]ef.Column, len(t.Keys))
	for i, k := range t.Keys {
		c, ok := f.ColumnByName(k)
		if !ok {
			return nil, fmt.Errorf("group key %s: no such column", k)
		}
		keyCols[i] = c
	}
	aggCols := make([]ef.Column, len(t.Aggs))
	for i, a := range t.Aggs {
		c, ok := f.ColumnByName(a.Column)
		if !ok {
			return nil, fmt.Errorf("aggregate %s(%s): no such column", a.Func, a.Column)
		}
		if (a.Func == Sum || a.Func == Mean) && !c.Kind().Numeric() {
			return nil, fmt.Errorf("aggregate %s(%s): column is %v", a.Func, a.Column, c.Kind())
		}
		aggCols[i] = c
	}

	groups := map[string][]int{}
	var order []string
	rep := map[string]int{}
rows:
	for r := 0; r < f.Rows(); r++ {
		for _, c := range keyCols {
			if c.IsNull(r) {
				continue rows
			}
		}
		k := f.RowKey(r, t.Keys...)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
			rep[k] = r
		}
		groups[k] = append(groups[k], r)
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rep[order[a]], rep[order[b]]
		for _, c := range keyCols {
			if cmp := compareCells(c, ra, rb); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})

	out := make([]ef.Column, 0, len(keyCols)+len(aggCols))
	for _, c := range keyCols {
		nc, _ := ef.NewColumn(c.Name(), c.Kind(), 0)
		for _, k := range order {
			if err := nc.AppendValue(c.Value(rep[k])); err != nil {
				return nil, err
			}
		}
		out = append(out, nc)
	}
	for i, a := range t.Aggs {
		nc, err := reduce(a, aggCols[i], order, groups)
		if err != nil {
			return nil, err
		}
		out = append(out, nc)
	}
	return ef.FromColumns(out...)
}

func reduce(a Agg, src ef.Column, order []string, groups map[string][]int) (ef.Column, error) {
	switch a.Func {
	case Sum:
		if ic, ok := src.(*ef.IntColumn); ok {
			nc := ef.NewIntColumn(a.out(), 0)
			for _, k := range order {
				var s int64
				for _, r := range groups[k] {
					if v, ok := ic.Get(r); ok {
						s += v
					}
				}
				nc.Append(s)
			}
			return nc, nil
		}
		nc := ef.NewFloatColumn(a.out(), 0)
		for _, k := range order {
			var s float64
			for _, r := range groups[k] {
				if v, ok := ef.Float(src, r); ok {
					s += v
				}
			}
			nc.Append(s)
		}
		return nc, nil
	case Mean:
		nc := ef.NewFloatColumn(a.out(), 0)
		for _, k := range order {
			var s float64
			var n int
			for _, r := range groups[k] {
				if v, ok := ef.Float(src, r); ok {
					s += v
					n++
				}
			}
			if n == 0 {
				nc.AppendNull()
				continue
			}
			nc.Append(s / float64(n))
		}
		return nc, nil
	case First:
		nc, err := ef.NewColumn(a.out(), src.Kind(), 0)
		if err != nil {
			return nil, err
		}
		for _, k := range order {
			var v any
			for _, r := range groups[k] {
				if v = src.Value(r); v != nil {
					break
				}
			}
			if err := nc.AppendValue(v); err != nil {
				return nil, err
			}
		}
		return nc, nil
	}
	return nil, fmt.Errorf("unknown aggregate %q", a.Func)
}

// compareCells orders two non-null cells of the same column.
func compareCells(c ef.Column, a, b int) int {
	switch col := c.(type) {
	case *ef.IntColumn:
		x, _ := col.Get(a)
		y, _ := col.Get(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case *ef.StringColumn:
		x, _ := col.Get(a)
		y, _ := col.Get(b)
		return strings.Compare(x, y)
	case *ef.TimeColumn:
		x, _ := col.Get(a)
		y, _ := col.Get(b)
		return x.Compare(y)
	case *ef.BoolColumn:
		x, _ := col.Get(a)
		y, _ := col.Get(b)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	x, _ := ef.Float(c, a)
	y, _ := ef.Float(c, b)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
