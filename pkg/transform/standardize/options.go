// Package standardize cleans extracted frames before validation: trimming
// padded text, rewriting and remapping codes, and filling nulls with
// constants.
package standardize

import (
	"sort"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// Replace rewrites Pattern matches in Column with With.
type Replace struct {
	Column  string `yaml:"column" toml:"column" validate:"required"`
	Pattern string `yaml:"pattern" toml:"pattern" validate:"required"`
	With    string `yaml:"with" toml:"with"`
}

// Options is the clean section of a source in configuration.
type Options struct {
	Trim    bool                         `yaml:"trim" toml:"trim"`
	Replace []Replace                    `yaml:"replace" toml:"replace" validate:"omitempty,dive"`
	Map     map[string]map[string]string `yaml:"map" toml:"map"`
	Fill    map[string]any               `yaml:"fill" toml:"fill"`
}

// Empty reports whether the options select no step.
func (o Options) Empty() bool {
	return !o.Trim && len(o.Replace) == 0 && len(o.Map) == 0 && len(o.Fill) == 0
}

// Steps builds the cleaning transforms in a fixed order: trim, replace, map,
// fill. Map and fill columns run in name order.
func Steps(o Options) ([]ef.Transform, error) {
	var steps []ef.Transform
	if o.Trim {
		steps = append(steps, &Trim{})
	}
	for _, r := range o.Replace {
		rr, err := NewRegexReplace(r.Column, r.Pattern, r.With)
		if err != nil {
			return nil, err
		}
		steps = append(steps, rr)
	}
	for _, col := range sortedKeys(o.Map) {
		steps = append(steps, &MapValues{Column: col, Map: o.Map[col]})
	}
	for _, col := range sortedKeys(o.Fill) {
		steps = append(steps, &Fill{Column: col, Value: o.Fill[col]})
	}
	return steps, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
