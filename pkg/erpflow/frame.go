package erpflow

import (
	"fmt"
	"time"
)

// Schema describes the logical shape of a dataset.
type Schema struct {
	Columns []ColumnSchema
}

type ColumnSchema struct {
	Name     string
	Type     Kind
	Nullable bool
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, cs := range s.Columns {
		out[i] = cs.Name
	}
	return out
}

// Kind enumerates supported logical types.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "invalid"
	}
}

// Numeric reports whether values of this kind can be read as float64.
func (k Kind) Numeric() bool { return k == KindInt || k == KindFloat }

// Column is a typed, nullable column abstraction.
type Column interface {
	Name() string
	Kind() Kind
	Len() int
	IsNull(i int) bool
	SetNull(i int)
	// Value returns the boxed cell value, or nil when the cell is null.
	Value(i int) any
	// AppendValue appends a boxed value; nil appends a null.
	AppendValue(v any) error
}

// NewColumn allocates an empty column of the given kind.
func NewColumn(name string, k Kind, n int) (Column, error) {
	switch k {
	case KindBool:
		return NewBoolColumn(name, n), nil
	case KindInt:
		return NewIntColumn(name, n), nil
	case KindFloat:
		return NewFloatColumn(name, n), nil
	case KindString:
		return NewStringColumn(name, n), nil
	case KindTime:
		return NewTimeColumn(name, n), nil
	default:
		return nil, fmt.Errorf("column %s: invalid kind %v", name, k)
	}
}

type BoolColumn struct {
	name  string
	data  []bool
	nulls []bool
}

func NewBoolColumn(name string, n int) *BoolColumn {
	return &BoolColumn{name: name, data: make([]bool, n), nulls: make([]bool, n)}
}
func (c *BoolColumn) Name() string           { return c.name }
func (c *BoolColumn) Kind() Kind             { return KindBool }
func (c *BoolColumn) Len() int               { return len(c.data) }
func (c *BoolColumn) IsNull(i int) bool      { return c.nulls[i] }
func (c *BoolColumn) SetNull(i int)          { c.nulls[i] = true }
func (c *BoolColumn) Get(i int) (bool, bool) { return c.data[i], !c.nulls[i] }
func (c *BoolColumn) Set(i int, v bool)      { c.data[i] = v; c.nulls[i] = false }
func (c *BoolColumn) AppendNull()            { c.data = append(c.data, false); c.nulls = append(c.nulls, true) }
func (c *BoolColumn) Append(v bool)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *BoolColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	return c.data[i]
}
func (c *BoolColumn) AppendValue(v any) error {
	if v == nil {
		c.AppendNull()
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("column %s expects bool, got %T", c.name, v)
	}
	c.Append(b)
	return nil
}

type IntColumn struct {
	name  string
	data  []int64
	nulls []bool
}

func NewIntColumn(name string, n int) *IntColumn {
	return &IntColumn{name: name, data: make([]int64, n), nulls: make([]bool, n)}
}
func (c *IntColumn) Name() string            { return c.name }
func (c *IntColumn) Kind() Kind              { return KindInt }
func (c *IntColumn) Len() int                { return len(c.data) }
func (c *IntColumn) IsNull(i int) bool       { return c.nulls[i] }
func (c *IntColumn) SetNull(i int)           { c.nulls[i] = true }
func (c *IntColumn) Get(i int) (int64, bool) { return c.data[i], !c.nulls[i] }
func (c *IntColumn) Set(i int, v int64)      { c.data[i] = v; c.nulls[i] = false }
func (c *IntColumn) AppendNull()             { c.data = append(c.data, 0); c.nulls = append(c.nulls, true) }
func (c *IntColumn) Append(v int64)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *IntColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	return c.data[i]
}
func (c *IntColumn) AppendValue(v any) error {
	switch t := v.(type) {
	case nil:
		c.AppendNull()
	case int:
		c.Append(int64(t))
	case int32:
		c.Append(int64(t))
	case int64:
		c.Append(t)
	default:
		return fmt.Errorf("column %s expects int/int64, got %T", c.name, v)
	}
	return nil
}

type FloatColumn struct {
	name  string
	data  []float64
	nulls []bool
}

func NewFloatColumn(name string, n int) *FloatColumn {
	return &FloatColumn{name: name, data: make([]float64, n), nulls: make([]bool, n)}
}
func (c *FloatColumn) Name() string              { return c.name }
func (c *FloatColumn) Kind() Kind                { return KindFloat }
func (c *FloatColumn) Len() int                  { return len(c.data) }
func (c *FloatColumn) IsNull(i int) bool         { return c.nulls[i] }
func (c *FloatColumn) SetNull(i int)             { c.nulls[i] = true }
func (c *FloatColumn) Get(i int) (float64, bool) { return c.data[i], !c.nulls[i] }
func (c *FloatColumn) Set(i int, v float64)      { c.data[i] = v; c.nulls[i] = false }
func (c *FloatColumn) AppendNull()               { c.data = append(c.data, 0); c.nulls = append(c.nulls, true) }
func (c *FloatColumn) Append(v float64)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *FloatColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	return c.data[i]
}
func (c *FloatColumn) AppendValue(v any) error {
	switch t := v.(type) {
	case nil:
		c.AppendNull()
	case float32:
		c.Append(float64(t))
	case float64:
		c.Append(t)
	case int:
		c.Append(float64(t))
	case int64:
		c.Append(float64(t))
	default:
		return fmt.Errorf("column %s expects float64, got %T", c.name, v)
	}
	return nil
}

type StringColumn struct {
	name  string
	data  []string
	nulls []bool
}

func NewStringColumn(name string, n int) *StringColumn {
	return &StringColumn{name: name, data: make([]string, n), nulls: make([]bool, n)}
}
func (c *StringColumn) Name() string             { return c.name }
func (c *StringColumn) Kind() Kind               { return KindString }
func (c *StringColumn) Len() int                 { return len(c.data) }
func (c *StringColumn) IsNull(i int) bool        { return c.nulls[i] }
func (c *StringColumn) SetNull(i int)            { c.nulls[i] = true }
func (c *StringColumn) Get(i int) (string, bool) { return c.data[i], !c.nulls[i] }
func (c *StringColumn) Set(i int, v string)      { c.data[i] = v; c.nulls[i] = false }
func (c *StringColumn) AppendNull()              { c.data = append(c.data, ""); c.nulls = append(c.nulls, true) }
func (c *StringColumn) Append(v string)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *StringColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	return c.data[i]
}
func (c *StringColumn) AppendValue(v any) error {
	if v == nil {
		c.AppendNull()
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("column %s expects string, got %T", c.name, v)
	}
	c.Append(s)
	return nil
}

type TimeColumn struct {
	name  string
	data  []time.Time
	nulls []bool
}

func NewTimeColumn(name string, n int) *TimeColumn {
	return &TimeColumn{name: name, data: make([]time.Time, n), nulls: make([]bool, n)}
}
func (c *TimeColumn) Name() string                { return c.name }
func (c *TimeColumn) Kind() Kind                  { return KindTime }
func (c *TimeColumn) Len() int                    { return len(c.data) }
func (c *TimeColumn) IsNull(i int) bool           { return c.nulls[i] }
func (c *TimeColumn) SetNull(i int)               { c.nulls[i] = true }
func (c *TimeColumn) Get(i int) (time.Time, bool) { return c.data[i], !c.nulls[i] }
func (c *TimeColumn) Set(i int, v time.Time)      { c.data[i] = v; c.nulls[i] = false }
func (c *TimeColumn) AppendNull() {
	c.data = append(c.data, time.Time{})
	c.nulls = append(c.nulls, true)
}
func (c *TimeColumn) Append(v time.Time) {
	c.data = append(c.data, v)
	c.nulls = append(c.nulls, false)
}
func (c *TimeColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	return c.data[i]
}
func (c *TimeColumn) AppendValue(v any) error {
	if v == nil {
		c.AppendNull()
		return nil
	}
	t, ok := v.(time.Time)
	if !ok {
		return fmt.Errorf("column %s expects time.Time, got %T", c.name, v)
	}
	c.Append(t)
	return nil
}

// Float reads a numeric cell as float64. ok is false for nulls and
// non-numeric columns.
func Float(c Column, i int) (float64, bool) {
	switch col := c.(type) {
	case *FloatColumn:
		return col.Get(i)
	case *IntColumn:
		v, ok := col.Get(i)
		return float64(v), ok
	}
	return 0, false
}

// Frame is a columnar container for tabular data.
type Frame struct {
	schema Schema
	cols   []Column
	index  map[string]int // name -> col index
	nrows  int
}

func NewFrame(s Schema) *Frame {
	f := &Frame{schema: s, cols: make([]Column, len(s.Columns)), index: make(map[string]int)}
	for i, cs := range s.Columns {
		c, err := NewColumn(cs.Name, cs.Type, 0)
		if err != nil {
			panic(err)
		}
		f.cols[i] = c
		f.index[cs.Name] = i
	}
	return f
}

// FromColumns builds a Frame around existing columns, which must all have
// the same length.
func FromColumns(cols ...Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int)}
	for _, c := range cols {
		if err := f.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Frame) Schema() Schema { return f.schema }
func (f *Frame) Rows() int      { return f.nrows }
func (f *Frame) Cols() int      { return len(f.cols) }

func (f *Frame) ColumnByName(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// AddColumn appends c to the frame, replacing any column with the same name.
func (f *Frame) AddColumn(c Column) error {
	if len(f.cols) > 0 && c.Len() != f.nrows {
		return fmt.Errorf("column %s has %d rows, frame has %d", c.Name(), c.Len(), f.nrows)
	}
	if len(f.cols) == 0 {
		f.nrows = c.Len()
	}
	cs := ColumnSchema{Name: c.Name(), Type: c.Kind(), Nullable: true}
	if i, ok := f.index[c.Name()]; ok {
		f.cols[i] = c
		f.schema.Columns[i] = cs
		return nil
	}
	f.index[c.Name()] = len(f.cols)
	f.cols = append(f.cols, c)
	f.schema.Columns = append(f.schema.Columns, cs)
	return nil
}

// Value returns the boxed value at (row, name), nil for nulls or unknown columns.
func (f *Frame) Value(row int, name string) any {
	c, ok := f.ColumnByName(name)
	if !ok {
		return nil
	}
	return c.Value(row)
}

// AppendNullRow appends a row with all-null values.
func (f *Frame) AppendNullRow() {
	for _, c := range f.cols {
		_ = c.AppendValue(nil)
	}
	f.nrows++
}

// AppendRow appends one row given in schema order.
func (f *Frame) AppendRow(vals ...any) error {
	if len(vals) != len(f.cols) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(vals), len(f.cols))
	}
	f.AppendNullRow()
	row := f.nrows - 1
	for i, v := range vals {
		if err := f.SetCell(row, f.cols[i].Name(), v); err != nil {
			return err
		}
	}
	return nil
}

// SetCell sets a single cell value by name (row must exist).
func (f *Frame) SetCell(row int, name string, v any) error {
	i, ok := f.index[name]
	if !ok {
		return fmt.Errorf("unknown column: %s", name)
	}
	c := f.cols[i]
	if v == nil {
		c.SetNull(row)
		return nil
	}
	switch col := c.(type) {
	case *BoolColumn:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("column %s expects bool", name)
		}
		col.Set(row, b)
	case *IntColumn:
		switch t := v.(type) {
		case int:
			col.Set(row, int64(t))
		case int32:
			col.Set(row, int64(t))
		case int64:
			col.Set(row, t)
		case float64:
			col.Set(row, int64(t))
		default:
			return fmt.Errorf("column %s expects int/int64", name)
		}
	case *FloatColumn:
		switch t := v.(type) {
		case float32:
			col.Set(row, float64(t))
		case float64:
			col.Set(row, t)
		case int:
			col.Set(row, float64(t))
		case int64:
			col.Set(row, float64(t))
		default:
			return fmt.Errorf("column %s expects float64", name)
		}
	case *StringColumn:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("column %s expects string", name)
		}
		col.Set(row, s)
	case *TimeColumn:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("column %s expects time.Time", name)
		}
		col.Set(row, t)
	default:
		return fmt.Errorf("unknown column kind")
	}
	return nil
}

// Select returns a new frame holding copies of the named columns in order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := &Frame{index: make(map[string]int)}
	for _, n := range names {
		c, ok := f.ColumnByName(n)
		if !ok {
			return nil, fmt.Errorf("select: unknown column %s", n)
		}
		cp, err := copyColumn(c, c.Name())
		if err != nil {
			return nil, err
		}
		if err := out.AddColumn(cp); err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		out.nrows = f.nrows
	}
	return out, nil
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	out, err := f.Select(f.schema.Names()...)
	if err != nil {
		panic(err)
	}
	return out
}

// Take returns a new frame with the given rows, in the given order.
func (f *Frame) Take(rows []int) *Frame {
	out := NewFrame(f.schema)
	for _, r := range rows {
		out.AppendNullRow()
		for ci, c := range f.cols {
			if v := c.Value(r); v != nil {
				_ = out.SetCell(out.nrows-1, f.schema.Columns[ci].Name, v)
			}
		}
	}
	return out
}

func copyColumn(c Column, name string) (Column, error) {
	out, err := NewColumn(name, c.Kind(), 0)
	if err != nil {
		return nil, err
	}
	for i := 0; i < c.Len(); i++ {
		if err := out.AppendValue(c.Value(i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
