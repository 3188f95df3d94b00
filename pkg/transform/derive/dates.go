package derive

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// DefaultDateLayouts are tried in order when parsing date strings.
var DefaultDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102",
	"2006-01",
}

// ToTime replaces a string Column with a time column parsed using Layouts
// (DefaultDateLayouts when empty). Integer columns are parsed from their
// decimal form. Time columns pass through unchanged; an
// unparsable value is an error.
type ToTime struct {
	Column  string
	Layouts []string
}

func (t *ToTime) Name() string { return "to_time" }

func (t *ToTime) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return nil, fmt.Errorf("no such column %s", t.Column)
	}
	switch c := col.(type) {
	case *ef.TimeColumn:
		return f, nil
	case *ef.StringColumn:
		out := ef.NewTimeColumn(t.Column, 0)
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Get(i)
			if !ok || strings.TrimSpace(v) == "" {
				out.AppendNull()
				continue
			}
			ts, err := ParseTime(v, t.Layouts)
			if err != nil {
				return nil, fmt.Errorf("column %s row %d: %w", t.Column, i, err)
			}
			out.Append(ts)
		}
		return f, f.AddColumn(out)
	case *ef.IntColumn:
		// compact dates such as 20240301 read from exports as integers
		out := ef.NewTimeColumn(t.Column, 0)
		for i := 0; i < c.Len(); i++ {
			v, ok := c.Get(i)
			if !ok {
				out.AppendNull()
				continue
			}
			ts, err := ParseTime(strconv.FormatInt(v, 10), t.Layouts)
			if err != nil {
				return nil, fmt.Errorf("column %s row %d: %w", t.Column, i, err)
			}
			out.Append(ts)
		}
		return f, f.AddColumn(out)
	}
	return nil, fmt.Errorf("column %s is %v, want string, int or time", t.Column, col.Kind())
}

// ParseTime parses s with the first matching layout. Values without a zone
// are read as UTC.
func ParseTime(s string, layouts []string) (time.Time, error) {
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if ts, err := time.Parse(l, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}

// DaysUntil adds As, the whole number of days from Now() to the time in
// Column, rounded down: a moment twelve hours ago is -1.
type DaysUntil struct {
	Column string
	As     string
	Now    func() time.Time
}

func (t *DaysUntil) Name() string { return "days_until" }

func (t *DaysUntil) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	col, ok := f.ColumnByName(t.Column)
	if !ok {
		return nil, fmt.Errorf("no such column %s", t.Column)
	}
	tc, ok := col.(*ef.TimeColumn)
	if !ok {
		return nil, fmt.Errorf("column %s is %v, want time", t.Column, col.Kind())
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	ref := now()
	out := ef.NewIntColumn(t.As, 0)
	for i := 0; i < tc.Len(); i++ {
		v, ok := tc.Get(i)
		if !ok {
			out.AppendNull()
			continue
		}
		days := math.Floor(v.Sub(ref).Hours() / 24)
		out.Append(int64(days))
	}
	return f, f.AddColumn(out)
}
