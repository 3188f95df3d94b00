package load

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/zoobzio/clockz"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
	"github.com/wdm0006/erpflow/pkg/io/parquetio"
)

// Options configure a Loader.
type Options struct {
	// Prefix of object keys (default "processed").
	Prefix string
	// TempDir holds staged parquet files (default os.TempDir()).
	TempDir string
	// Compression of the staged parquet file (default snappy).
	Compression string
}

// Loader stages a frame as parquet, uploads it and loads it into the
// warehouse. A nil store or warehouse skips that step.
type Loader struct {
	store ObjectStore
	wh    Warehouse
	clock clockz.Clock
	opt   Options
	log   *slog.Logger
}

func NewLoader(store ObjectStore, wh Warehouse, clock clockz.Clock, opt Options, log *slog.Logger) *Loader {
	if clock == nil {
		clock = clockz.RealClock
	}
	if opt.TempDir == "" {
		opt.TempDir = os.TempDir()
	}
	return &Loader{store: store, wh: wh, clock: clock, opt: opt, log: orDiscard(log)}
}

// Result reports where a dataset was published.
type Result struct {
	Key   string
	Table string
	Rows  int
}

// Load publishes f as dataset into table. The staged file is removed
// whether or not the load succeeds.
func (l *Loader) Load(ctx context.Context, dataset, table string, f *ef.Frame) (res Result, err error) {
	key := ObjectKey(l.opt.Prefix, dataset, l.clock.Now())
	staged := filepath.Join(l.opt.TempDir, path.Base(key))
	if err := parquetio.WriteAll(staged, f, parquetio.Options{Compression: l.opt.Compression}); err != nil {
		_ = os.Remove(staged)
		return res, fmt.Errorf("stage %s: %w", dataset, err)
	}
	defer func() {
		if rerr := os.Remove(staged); rerr != nil && !os.IsNotExist(rerr) {
			l.log.WarnContext(ctx, "could not remove staged file", "path", staged, "error", rerr)
		}
	}()

	res = Result{Table: table, Rows: f.Rows()}
	if l.store != nil {
		if err := l.store.Put(ctx, key, staged); err != nil {
			return res, fmt.Errorf("upload %s: %w", dataset, err)
		}
		res.Key = key
	}
	if l.wh != nil && table != "" {
		if err := l.wh.Load(ctx, table, staged, f.Schema().Names()); err != nil {
			return res, fmt.Errorf("warehouse %s: %w", table, err)
		}
	}
	l.log.InfoContext(ctx, "loaded dataset", "dataset", dataset, "key", res.Key, "table", table, "rows", res.Rows)
	return res, nil
}
