package standardize

import (
	"context"
	"fmt"
	"regexp"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// RegexReplace rewrites matches of a pattern in a string column, e.g.
// stripping the leading zeros SAP stores on material numbers.
type RegexReplace struct {
	Column  string
	Replace string
	re      *regexp.Regexp
}

func NewRegexReplace(column, pattern, replace string) (*RegexReplace, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("replace %s: %w", column, err)
	}
	return &RegexReplace{Column: column, Replace: replace, re: re}, nil
}

func (t *RegexReplace) Name() string { return "regex_replace" }

func (t *RegexReplace) Apply(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	if t.re == nil {
		return nil, fmt.Errorf("replace %s: no pattern", t.Column)
	}
	for _, c := range stringColumns(f, t.Column) {
		for i := 0; i < c.Len(); i++ {
			if v, ok := c.Get(i); ok {
				c.Set(i, t.re.ReplaceAllString(v, t.Replace))
			}
		}
	}
	return f, nil
}
