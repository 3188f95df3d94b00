package validate

import (
	"fmt"
	"sort"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// Rule types accepted in configuration.
const (
	TypeNotNull = "not_null"
	TypeRange   = "range"
	TypeInSet   = "in_set"
)

// Rule is a declarative check on one column, written in config as
// {type: not_null}, {type: range, min: 0, max: 100} or
// {type: in_set, values: [a, b]}.
type Rule struct {
	Type   string   `yaml:"type" toml:"type" json:"type" validate:"required,oneof=not_null range in_set"`
	Min    *float64 `yaml:"min,omitempty" toml:"min,omitempty" json:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty" toml:"max,omitempty" json:"max,omitempty"`
	Values []string `yaml:"values,omitempty" toml:"values,omitempty" json:"values,omitempty"`
}

// Rules maps column name to the rule applied to it.
type Rules map[string]Rule

// Issue is one failed rule.
type Issue struct {
	Column string
	Rule   string
	Count  int
	Detail string
}

func (i Issue) String() string { return i.Detail }

// Validate evaluates rules against f and returns one Issue per rule whose
// violation count is positive, in column-name order. Columns absent from f
// are skipped; rule bounds are taken as given.
func Validate(f *ef.Frame, rules Rules) []Issue {
	cols := make([]string, 0, len(rules))
	for c := range rules {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var issues []Issue
	for _, name := range cols {
		rule := rules[name]
		c, err := rule.Step(name)
		if err != nil {
			if _, ok := f.ColumnByName(name); ok {
				issues = append(issues, Issue{Column: name, Rule: rule.Type, Detail: fmt.Sprintf("%s: %v", name, err)})
			}
			continue
		}
		if is, bad := c.issue(f); bad {
			issues = append(issues, is)
		}
	}
	return issues
}

// Step returns the pipeline check enforcing r on column.
func (r Rule) Step(column string) (Check, error) {
	switch r.Type {
	case TypeNotNull:
		return &NotNull{Column: column}, nil
	case TypeRange:
		return &Range{Column: column, Min: r.Min, Max: r.Max}, nil
	case TypeInSet:
		return NewInSet(column, r.Values), nil
	}
	return nil, fmt.Errorf("unknown rule type %q", r.Type)
}

// Check is a Transform that fails when its rule is violated.
type Check interface {
	ef.Transform
	issue(f *ef.Frame) (Issue, bool)
}

func failOn(c Check, f *ef.Frame) (*ef.Frame, error) {
	if is, bad := c.issue(f); bad {
		return f, fmt.Errorf("%s: %s", c.Name(), is.Detail)
	}
	return f, nil
}

// Details flattens issues into their human-readable form.
func Details(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Detail
	}
	return out
}
