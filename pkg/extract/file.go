package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
	"github.com/wdm0006/erpflow/pkg/io/csvio"
)

// File formats accepted by FileSource.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// FileOptions describe an ERP file export.
type FileOptions struct {
	// Format is csv or xlsx; empty means infer from the extension.
	Format string
	// Sheet selects the worksheet of an xlsx file (default: first sheet).
	Sheet string
	// Delimiter overrides CSV delimiter sniffing.
	Delimiter rune
	// Kinds pins column kinds instead of inferring them.
	Kinds map[string]ef.Kind
}

// FileSource reads a CSV (optionally gzip-compressed) or XLSX export with a
// header row.
type FileSource struct {
	name string
	path string
	opt  FileOptions
	log  *slog.Logger
}

func NewFileSource(name, path string, opt FileOptions, log *slog.Logger) (*FileSource, error) {
	if opt.Format == "" {
		opt.Format = formatFromPath(path)
	}
	switch opt.Format {
	case FormatCSV, FormatXLSX:
	default:
		return nil, fmt.Errorf("source %s: unsupported file format %q", name, opt.Format)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileSource{name: name, path: path, opt: opt, log: log}, nil
}

func formatFromPath(path string) string {
	p := strings.TrimSuffix(strings.ToLower(path), ".gz")
	switch filepath.Ext(p) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

func (s *FileSource) Name() string { return s.name }

func (s *FileSource) Extract(ctx context.Context) (*ef.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		f    *ef.Frame
		warn string
		err  error
	)
	ropt := csvio.ReaderOptions{HasHeader: true, Delimiter: s.opt.Delimiter, Kinds: s.opt.Kinds}
	if s.opt.Format == FormatXLSX {
		f, warn, err = s.readXLSX(ropt)
	} else {
		f, warn, err = csvio.ReadFile(s.path, ropt)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "extraction failed", "source", s.name, "path", s.path, "error", err)
		return nil, fmt.Errorf("extract %s: %w", s.name, err)
	}
	if warn != "" {
		s.log.WarnContext(ctx, "repaired ragged records", "source", s.name, "path", s.path, "repairs", warn)
	}
	s.log.InfoContext(ctx, "extracted data", "source", s.name, "path", s.path, "rows", f.Rows(), "cols", f.Cols())
	return f, nil
}

// readXLSX reads the sheet as records. Rows shorter than the header are
// common since trailing empty cells are not stored.
func (s *FileSource) readXLSX(ropt csvio.ReaderOptions) (*ef.Frame, string, error) {
	x, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = x.Close() }()
	sheet := s.opt.Sheet
	if sheet == "" {
		sheets := x.GetSheetList()
		if len(sheets) == 0 {
			return nil, "", fmt.Errorf("%s: workbook has no sheets", s.path)
		}
		sheet = sheets[0]
	}
	rows, err := x.GetRows(sheet)
	if err != nil {
		return nil, "", fmt.Errorf("sheet %s: %w", sheet, err)
	}
	r := csvio.NewRecordsReader(rows, ropt)
	schema, _, err := r.InferSchema()
	if err != nil {
		return nil, "", fmt.Errorf("sheet %s: %w", sheet, err)
	}
	f, err := r.ReadAll(schema)
	if err != nil {
		return nil, "", err
	}
	return f, r.Warnings(), nil
}
