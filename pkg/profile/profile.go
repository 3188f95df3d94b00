// Package profile summarises frames column by column.
package profile

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

type NumStats struct {
	Count int
	Nulls int
	NaN   int
	Min   float64
	Max   float64
	Sum   float64
}

// Mean of the finite values seen, NaN when there are none.
func (s *NumStats) Mean() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.Sum / float64(s.Count)
}

type ValueStats struct {
	Count int
	Nulls int
	Freqs map[string]int
}

type ColumnProfile struct {
	Name string
	Kind ef.Kind
	Num  *NumStats
	Val  *ValueStats
}

// Collector accumulates column statistics over one or more frames.
type Collector struct {
	cols  []ColumnProfile
	index map[string]int
	topK  int
}

func NewCollector(schema ef.Schema, topK int) *Collector {
	c := &Collector{index: make(map[string]int), topK: topK}
	c.cols = make([]ColumnProfile, len(schema.Columns))
	for i, cs := range schema.Columns {
		cp := ColumnProfile{Name: cs.Name, Kind: cs.Type}
		if cs.Type.Numeric() {
			cp.Num = &NumStats{Min: math.Inf(1), Max: math.Inf(-1)}
		} else {
			cp.Val = &ValueStats{Freqs: make(map[string]int)}
		}
		c.cols[i] = cp
		c.index[cs.Name] = i
	}
	return c
}

// Of profiles a single frame.
func Of(f *ef.Frame, topK int) *Collector {
	c := NewCollector(f.Schema(), topK)
	c.ConsumeFrame(f)
	return c
}

func (c *Collector) Columns() []ColumnProfile { return c.cols }

func (c *Collector) ConsumeFrame(f *ef.Frame) {
	for _, cs := range f.Schema().Columns {
		idx, ok := c.index[cs.Name]
		if !ok {
			continue
		}
		cp := &c.cols[idx]
		col, _ := f.ColumnByName(cs.Name)
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				if cp.Num != nil {
					cp.Num.Nulls++
				} else {
					cp.Val.Nulls++
				}
				continue
			}
			if cp.Num != nil {
				v, _ := ef.Float(col, i)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					cp.Num.NaN++
					continue
				}
				cp.Num.Count++
				cp.Num.Min = math.Min(cp.Num.Min, v)
				cp.Num.Max = math.Max(cp.Num.Max, v)
				cp.Num.Sum += v
				continue
			}
			cp.Val.Count++
			if c.topK > 0 {
				cp.Val.Freqs[fmt.Sprint(col.Value(i))]++
			}
		}
	}
}

// LogAttrs renders one group attribute per column for structured logging.
func (c *Collector) LogAttrs() []any {
	out := make([]any, 0, len(c.cols))
	for _, cp := range c.cols {
		if cp.Num != nil {
			attrs := []any{"kind", cp.Kind.String(), "count", cp.Num.Count, "nulls", cp.Num.Nulls}
			if cp.Num.NaN > 0 {
				attrs = append(attrs, "non_finite", cp.Num.NaN)
			}
			if cp.Num.Count > 0 {
				attrs = append(attrs, "min", cp.Num.Min, "max", cp.Num.Max, "mean", cp.Num.Mean())
			}
			out = append(out, slog.Group(cp.Name, attrs...))
			continue
		}
		out = append(out, slog.Group(cp.Name, "kind", cp.Kind.String(), "count", cp.Val.Count, "nulls", cp.Val.Nulls))
	}
	return out
}

func (c *Collector) ReportText() string {
	var b strings.Builder
	b.WriteString("Profile Summary\n")
	for _, cp := range c.cols {
		fmt.Fprintf(&b, "- %s (%v): ", cp.Name, cp.Kind)
		if cp.Num != nil {
			fmt.Fprintf(&b, "count=%d nulls=%d", cp.Num.Count, cp.Num.Nulls)
			if cp.Num.Count > 0 {
				fmt.Fprintf(&b, " min=%.6g max=%.6g mean=%.6g", cp.Num.Min, cp.Num.Max, cp.Num.Mean())
			}
			if cp.Num.NaN > 0 {
				fmt.Fprintf(&b, " non_finite=%d", cp.Num.NaN)
			}
			b.WriteByte('\n')
			continue
		}
		fmt.Fprintf(&b, "count=%d nulls=%d\n", cp.Val.Count, cp.Val.Nulls)
		for _, kv := range topValues(cp.Val.Freqs, c.topK) {
			fmt.Fprintf(&b, "  * %q: %d\n", kv.value, kv.n)
		}
	}
	return b.String()
}

type freq struct {
	value string
	n     int
}

func topValues(freqs map[string]int, k int) []freq {
	arr := make([]freq, 0, len(freqs))
	for v, n := range freqs {
		arr = append(arr, freq{v, n})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].n != arr[j].n {
			return arr[i].n > arr[j].n
		}
		return arr[i].value < arr[j].value
	})
	if k > 0 && k < len(arr) {
		arr = arr[:k]
	}
	return arr
}
