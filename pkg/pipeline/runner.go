// Package pipeline drives a run: extract and validate every dataset, derive
// the reports, then publish them.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"

	"github.com/wdm0006/erpflow/pkg/config"
	"github.com/wdm0006/erpflow/pkg/erp"
	ef "github.com/wdm0006/erpflow/pkg/erpflow"
	"github.com/wdm0006/erpflow/pkg/extract"
	"github.com/wdm0006/erpflow/pkg/load"
	"github.com/wdm0006/erpflow/pkg/logging"
	"github.com/wdm0006/erpflow/pkg/profile"
	"github.com/wdm0006/erpflow/pkg/transform/validate"
)

// Dataset is one derived report and the sources feeding it.
type Dataset struct {
	Name    string
	Kind    string
	Sources []extract.Source
	Rules   validate.Rules
	Table   string
}

// Publisher stores a derived frame; *load.Loader implements it.
type Publisher interface {
	Load(ctx context.Context, dataset, table string, f *ef.Frame) (load.Result, error)
}

// Options tune a Runner.
type Options struct {
	// DryRun stops each dataset after transformation.
	DryRun bool
	Clock  clockz.Clock
}

type Runner struct {
	datasets []Dataset
	tr       *erp.Transformer
	pub      Publisher
	opt      Options
	log      *slog.Logger
}

func NewRunner(datasets []Dataset, tr *erp.Transformer, pub Publisher, opt Options, log *slog.Logger) *Runner {
	if opt.Clock == nil {
		opt.Clock = clockz.RealClock
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{datasets: datasets, tr: tr, pub: pub, opt: opt, log: log}
}

// DatasetResult describes one dataset of a finished run.
type DatasetResult struct {
	Name  string
	Rows  int
	Key   string
	Table string
}

// Summary describes a run.
type Summary struct {
	RunID    string
	Datasets []DatasetResult
	Duration time.Duration
}

// Run extracts and validates every dataset before transforming any, and
// transforms every dataset before loading any, so a validation or
// transformation failure publishes nothing.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	ctx = logging.WithRunID(ctx, sum.RunID)
	start := r.opt.Clock.Now()
	r.log.InfoContext(ctx, "starting ETL pipeline execution", "datasets", len(r.datasets), "dry_run", r.opt.DryRun)

	cache := map[string]*ef.Frame{}
	inputs := make([][]*ef.Frame, len(r.datasets))
	for i, ds := range r.datasets {
		frames, err := r.extract(ctx, ds, cache)
		if err != nil {
			return sum, err
		}
		if verr := Check(ds, frames); verr != nil {
			r.log.ErrorContext(ctx, "validation issues", "dataset", ds.Name, "count", verr.Count(), "issues", verr.Error())
			return sum, verr
		}
		inputs[i] = frames
	}

	outputs := make([]*ef.Frame, len(r.datasets))
	for i, ds := range r.datasets {
		out, err := r.transform(ctx, ds, inputs[i])
		if err != nil {
			return sum, &StageError{Stage: StageTransform, Dataset: ds.Name, Err: err}
		}
		if r.log.Enabled(ctx, slog.LevelDebug) {
			attrs := append([]any{"dataset", ds.Name}, profile.Of(out, 0).LogAttrs()...)
			r.log.DebugContext(ctx, "dataset profile", attrs...)
		}
		outputs[i] = out
	}

	for i, ds := range r.datasets {
		res := DatasetResult{Name: ds.Name, Rows: outputs[i].Rows(), Table: ds.Table}
		if r.opt.DryRun {
			r.log.InfoContext(ctx, "dry run: skipping load", "dataset", ds.Name, "rows", res.Rows)
			sum.Datasets = append(sum.Datasets, res)
			continue
		}
		lr, err := r.pub.Load(ctx, ds.Name, ds.Table, outputs[i])
		if err != nil {
			return sum, &StageError{Stage: StageLoad, Dataset: ds.Name, Err: err}
		}
		res.Key = lr.Key
		sum.Datasets = append(sum.Datasets, res)
	}

	sum.Duration = r.opt.Clock.Since(start)
	r.log.InfoContext(ctx, "ETL pipeline completed successfully", "datasets", len(sum.Datasets), "duration", sum.Duration)
	return sum, nil
}

// Extract pulls every source of ds without validating.
func (r *Runner) Extract(ctx context.Context, ds Dataset) ([]*ef.Frame, error) {
	return r.extract(ctx, ds, map[string]*ef.Frame{})
}

// extract pulls each source once per run; later datasets reading the same
// source get a copy.
func (r *Runner) extract(ctx context.Context, ds Dataset, cache map[string]*ef.Frame) ([]*ef.Frame, error) {
	if len(ds.Sources) == 0 {
		return nil, &StageError{Stage: StageExtract, Dataset: ds.Name, Err: fmt.Errorf("no sources")}
	}
	frames := make([]*ef.Frame, 0, len(ds.Sources))
	for _, src := range ds.Sources {
		if f, ok := cache[src.Name()]; ok {
			frames = append(frames, f.Clone())
			continue
		}
		f, err := src.Extract(ctx)
		if err != nil {
			return nil, &StageError{Stage: StageExtract, Dataset: ds.Name, Err: err}
		}
		cache[src.Name()] = f
		frames = append(frames, f)
	}
	return frames, nil
}

// Check validates each extracted frame against the dataset's rules and
// returns nil when there are no issues. A source listed more than once is
// checked once.
func Check(ds Dataset, frames []*ef.Frame) *ValidationError {
	var verr *ValidationError
	seen := make(map[string]bool, len(frames))
	for i, f := range frames {
		name := fmt.Sprintf("source%d", i)
		if i < len(ds.Sources) {
			name = ds.Sources[i].Name()
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		issues := validate.Validate(f, ds.Rules)
		if len(issues) == 0 {
			continue
		}
		if verr == nil {
			verr = &ValidationError{Dataset: ds.Name, Issues: map[string][]validate.Issue{}}
		}
		verr.Issues[name] = issues
	}
	return verr
}

func (r *Runner) transform(ctx context.Context, ds Dataset, frames []*ef.Frame) (*ef.Frame, error) {
	switch ds.Kind {
	case config.KindProcurement:
		return r.tr.Procurement(ctx, frames...)
	case config.KindPnL, config.KindMargin:
		in, err := ef.Concat(frames...)
		if err != nil {
			return nil, err
		}
		if ds.Kind == config.KindPnL {
			return r.tr.PnL(ctx, in)
		}
		return r.tr.Margin(ctx, in)
	}
	return nil, fmt.Errorf("unknown dataset kind %q", ds.Kind)
}
