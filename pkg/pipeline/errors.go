package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wdm0006/erpflow/pkg/transform/validate"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// Stage names reported in StageError.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// StageError reports the stage and dataset a run failed in.
type StageError struct {
	Stage   string
	Dataset string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("dataset %s: %s: %v", e.Dataset, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ValidationError lists the issues found in a dataset's extracts, keyed by
// source name.
type ValidationError struct {
	Dataset string
	Issues  map[string][]validate.Issue
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, s := range e.Sources() {
		for _, is := range e.Issues[s] {
			parts = append(parts, s+": "+is.Detail)
		}
	}
	return fmt.Sprintf("dataset %s: %v: %s", e.Dataset, ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Sources returns the names of the sources with issues, sorted.
func (e *ValidationError) Sources() []string {
	sources := make([]string, 0, len(e.Issues))
	for s := range e.Issues {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// Count returns the total number of issues.
func (e *ValidationError) Count() int {
	n := 0
	for _, is := range e.Issues {
		n += len(is)
	}
	return n
}
