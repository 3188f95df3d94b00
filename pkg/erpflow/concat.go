package erpflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Concat stacks frames vertically. Columns are matched by name; a column
// missing from one input is null for that input's rows. Int and float
// columns sharing a name are widened to float.
func Concat(frames ...*Frame) (*Frame, error) {
	var schema Schema
	pos := map[string]int{}
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, cs := range f.Schema().Columns {
			i, ok := pos[cs.Name]
			if !ok {
				pos[cs.Name] = len(schema.Columns)
				schema.Columns = append(schema.Columns, ColumnSchema{Name: cs.Name, Type: cs.Type, Nullable: true})
				continue
			}
			k, err := unifyKinds(schema.Columns[i].Type, cs.Type)
			if err != nil {
				return nil, fmt.Errorf("concat column %s: %w", cs.Name, err)
			}
			schema.Columns[i].Type = k
		}
	}

	out := NewFrame(schema)
	for _, f := range frames {
		if f == nil {
			continue
		}
		for r := 0; r < f.Rows(); r++ {
			out.AppendNullRow()
			row := out.Rows() - 1
			for _, cs := range f.Schema().Columns {
				v := f.Value(r, cs.Name)
				if v == nil {
					continue
				}
				if err := out.SetCell(row, cs.Name, v); err != nil {
					return nil, fmt.Errorf("concat: %w", err)
				}
			}
		}
	}
	return out, nil
}

func unifyKinds(a, b Kind) (Kind, error) {
	if a == b {
		return a, nil
	}
	if a.Numeric() && b.Numeric() {
		return KindFloat, nil
	}
	return KindInvalid, fmt.Errorf("incompatible kinds %v and %v", a, b)
}

// DropDuplicates removes rows whose every cell equals an earlier row's.
// Nulls compare equal to nulls and NaN to NaN. First occurrences keep
// their relative order.
func (f *Frame) DropDuplicates() *Frame {
	seen := make(map[string]struct{}, f.nrows)
	keep := make([]int, 0, f.nrows)
	names := f.schema.Names()
	for r := 0; r < f.nrows; r++ {
		k := f.RowKey(r, names...)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, r)
	}
	if len(keep) == f.nrows {
		return f
	}
	return f.Take(keep)
}

// RowKey encodes the named cells of row r into a string usable as a map key.
// Each cell is length prefixed, so distinct rows never share a key.
func (f *Frame) RowKey(r int, names ...string) string {
	var b strings.Builder
	for _, n := range names {
		c := encodeCell(f.Value(r, n))
		b.WriteString(strconv.Itoa(len(c)))
		b.WriteByte(':')
		b.WriteString(c)
	}
	return b.String()
}

// encodeCell tags each value with its type. Ints keep full precision; a
// column never mixes ints and floats.
func encodeCell(v any) string {
	switch t := v.(type) {
	case nil:
		return "n"
	case bool:
		return "b" + strconv.FormatBool(t)
	case int64:
		return "i" + strconv.FormatInt(t, 10)
	case float64:
		if math.IsNaN(t) {
			return "fNaN"
		}
		return "f" + strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return "s" + t
	case time.Time:
		return "t" + t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("?%v", t)
	}
}
