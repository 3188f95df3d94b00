package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zoobzio/clockz"

	"github.com/wdm0006/erpflow/pkg/config"
	"github.com/wdm0006/erpflow/pkg/erp"
	ef "github.com/wdm0006/erpflow/pkg/erpflow"
	"github.com/wdm0006/erpflow/pkg/extract"
	"github.com/wdm0006/erpflow/pkg/load"
	"github.com/wdm0006/erpflow/pkg/logging"
	"github.com/wdm0006/erpflow/pkg/transform/standardize"
)

// Build wires a Runner from configuration. Disabled datasets are left out.
func Build(ctx context.Context, cfg *config.Config, clock clockz.Clock, log *slog.Logger) (*Runner, error) {
	if log == nil {
		log = logging.Discard()
	}
	datasets, err := Datasets(cfg, log)
	if err != nil {
		return nil, err
	}
	var pub Publisher
	if !cfg.DryRun {
		store, err := NewObjectStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		wh, err := NewWarehouse(cfg, log)
		if err != nil {
			return nil, err
		}
		pub = load.NewLoader(store, wh, clock, load.Options{
			Prefix:      cfg.AWS.Prefix,
			Compression: cfg.Transform.Compression,
		}, log)
	}
	tr := erp.NewTransformer(cfg.Transform.Params(), clock, log)
	return NewRunner(datasets, tr, pub, Options{DryRun: cfg.DryRun, Clock: clock}, log), nil
}

// Datasets resolves the enabled datasets and their sources.
func Datasets(cfg *config.Config, log *slog.Logger) ([]Dataset, error) {
	if log == nil {
		log = logging.Discard()
	}
	sources := map[string]extract.Source{}
	var out []Dataset
	for _, dc := range cfg.Datasets {
		if !dc.IsEnabled() {
			log.Info("dataset disabled", "dataset", dc.Name)
			continue
		}
		ds := Dataset{Name: dc.Name, Kind: dc.Kind, Rules: dc.Rules, Table: dc.Table}
		for _, name := range dc.Sources {
			src, ok := sources[name]
			if !ok {
				var err error
				src, err = NewSource(name, cfg.Sources[name], log)
				if err != nil {
					return nil, err
				}
				sources[name] = src
			}
			ds.Sources = append(ds.Sources, src)
		}
		out = append(out, ds)
	}
	return out, nil
}

// NewSource builds the extractor for one configured source.
func NewSource(name string, sc config.SourceConfig, log *slog.Logger) (extract.Source, error) {
	src, err := newSource(name, sc, log)
	if err != nil || sc.Clean.Empty() {
		return src, err
	}
	steps, err := standardize.Steps(sc.Clean)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", name, err)
	}
	return extract.WithSteps(src, steps...), nil
}

func newSource(name string, sc config.SourceConfig, log *slog.Logger) (extract.Source, error) {
	if sc.IsFile() {
		opt := extract.FileOptions{Format: sc.Driver, Sheet: sc.Sheet}
		if sc.Delimiter != "" {
			opt.Delimiter = []rune(sc.Delimiter)[0]
		}
		if len(sc.Kinds) > 0 {
			opt.Kinds = map[string]ef.Kind{}
			for col, k := range sc.Kinds {
				kind, err := parseKind(k)
				if err != nil {
					return nil, fmt.Errorf("source %s column %s: %w", name, col, err)
				}
				opt.Kinds[col] = kind
			}
		}
		return extract.NewFileSource(name, sc.Path, opt, log)
	}
	query := sc.Query
	if query == "" {
		q, ok := extract.CatalogQuery(sc.Catalog)
		if !ok {
			return nil, fmt.Errorf("source %s: unknown catalog query %q (have %v)", name, sc.Catalog, extract.CatalogNames())
		}
		query = q
	}
	return extract.NewSQLSource(name, sc.Driver, sc.DSN, query, log)
}

func parseKind(s string) (ef.Kind, error) {
	for _, k := range []ef.Kind{ef.KindBool, ef.KindInt, ef.KindFloat, ef.KindString, ef.KindTime} {
		if k.String() == s {
			return k, nil
		}
	}
	return ef.KindInvalid, fmt.Errorf("unknown kind %q", s)
}

// NewObjectStore returns the configured store, or nil for kind none.
func NewObjectStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (load.ObjectStore, error) {
	switch cfg.ObjectStore.Kind {
	case "s3":
		return load.NewS3Store(ctx, load.S3Options{
			Bucket:    cfg.AWS.S3Bucket,
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
		}, log)
	case "local":
		return load.NewLocalStore(cfg.ObjectStore.Dir, log), nil
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown object store %q", cfg.ObjectStore.Kind)
}

// NewWarehouse returns the configured warehouse, or nil for kind none.
func NewWarehouse(cfg *config.Config, log *slog.Logger) (load.Warehouse, error) {
	switch cfg.Warehouse.Kind {
	case "snowflake":
		sf := cfg.Warehouse.Snowflake
		return load.NewSnowflakeWarehouse(load.SnowflakeOptions{
			Account:   sf.Account,
			User:      sf.User,
			Password:  sf.Password,
			Database:  sf.Database,
			Schema:    sf.Schema,
			Warehouse: sf.Warehouse,
			Role:      sf.Role,
		}, log)
	case "postgres":
		return load.NewPostgresWarehouse(cfg.Warehouse.DSN, log), nil
	case "sqlite":
		return load.NewSQLiteWarehouse(cfg.Warehouse.DSN, log), nil
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown warehouse %q", cfg.Warehouse.Kind)
}
