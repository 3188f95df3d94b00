package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
	iox "github.com/wdm0006/erpflow/pkg/io/ioutils"
)

type ReaderOptions struct {
	HasHeader  bool
	Delimiter  rune // 0 = sniff, default ','
	SampleRows int  // for inference; default 100
	Strict     bool // if true, error on short/long records
	// Kinds pins the kind of named columns instead of inferring them.
	Kinds map[string]ef.Kind
}

type recordReader interface {
	Read() ([]string, error)
}

type Reader struct {
	rc  io.ReadCloser
	r   recordReader
	opt ReaderOptions
	buf [][]string
	// repair counters
	shortRecords int
	longRecords  int
}

// Open opens a CSV export (optionally gzip-compressed) and sniffs its
// delimiter unless one is given. The caller must Close the Reader.
func Open(path string, opt ReaderOptions) (*Reader, error) {
	rc, err := iox.OpenMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(rc)
	rr := csv.NewReader(br)
	if opt.Delimiter == 0 {
		sample, _ := br.Peek(4096)
		d, lazy := sniffDelimiter(sample)
		rr.Comma = d
		rr.LazyQuotes = lazy
	} else {
		rr.Comma = opt.Delimiter
	}
	rr.FieldsPerRecord = -1
	return &Reader{rc: rc, r: rr, opt: opt}, nil
}

// NewReaderFrom wraps an arbitrary io.Reader. Delimiter sniffing is not
// performed; ',' is used unless opt.Delimiter is set.
func NewReaderFrom(r io.Reader, opt ReaderOptions) *Reader {
	rr := csv.NewReader(r)
	if opt.Delimiter != 0 {
		rr.Comma = opt.Delimiter
	}
	rr.FieldsPerRecord = -1
	return &Reader{rc: io.NopCloser(r), r: rr, opt: opt}
}

// NewRecordsReader reads already-split records, such as spreadsheet rows,
// with the same inference rules as a CSV file.
func NewRecordsReader(records [][]string, opt ReaderOptions) *Reader {
	return &Reader{rc: io.NopCloser(nil), r: &sliceReader{records: records}, opt: opt}
}

type sliceReader struct {
	records [][]string
}

func (s *sliceReader) Read() ([]string, error) {
	if len(s.records) == 0 {
		return nil, io.EOF
	}
	rec := s.records[0]
	s.records = s.records[1:]
	return rec, nil
}

func (r *Reader) Close() error { return r.rc.Close() }

// ReadFile opens path, infers its schema and reads every row.
func ReadFile(path string, opt ReaderOptions) (*ef.Frame, string, error) {
	r, err := Open(path, opt)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = r.Close() }()
	schema, _, err := r.InferSchema()
	if err != nil {
		return nil, "", fmt.Errorf("csv %s: %w", path, err)
	}
	f, err := r.ReadAll(schema)
	if err != nil {
		return nil, "", fmt.Errorf("csv %s: %w", path, err)
	}
	return f, r.Warnings(), nil
}

// InferSchema reads the header (if present) and samples rows to determine
// column kinds. Sampled rows are retained for ReadAll.
func (r *Reader) InferSchema() (ef.Schema, []string, error) {
	var names []string
	rec, err := r.r.Read()
	if errors.Is(err, io.EOF) && r.opt.HasHeader {
		return ef.Schema{}, nil, errors.New("empty file")
	}
	if err != nil {
		return ef.Schema{}, nil, err
	}
	if r.opt.HasHeader {
		names = make([]string, len(rec))
		for i := range rec {
			names[i] = strings.TrimSpace(strings.ToValidUTF8(rec[i], "?"))
		}
		if len(names) > 0 {
			names[0] = strings.TrimPrefix(names[0], "\ufeff")
		}
	} else {
		names = make([]string, len(rec))
		for i := range names {
			names[i] = "col_" + strconv.Itoa(i)
		}
		r.buf = append(r.buf, append([]string(nil), rec...))
	}

	max := r.opt.SampleRows
	if max <= 0 {
		max = 100
	}
	for len(r.buf) < max {
		rr, err := r.r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ef.Schema{}, nil, err
		}
		r.buf = append(r.buf, rr)
	}

	kinds := inferKinds(r.buf, len(names))
	schema := ef.Schema{Columns: make([]ef.ColumnSchema, len(names))}
	for i := range names {
		k := kinds[i]
		if pinned, ok := r.opt.Kinds[names[i]]; ok {
			k = pinned
		}
		schema.Columns[i] = ef.ColumnSchema{Name: names[i], Type: k, Nullable: true}
	}
	return schema, names, nil
}

// ReadAll loads the buffered sample and the rest of the input into a Frame.
// Cells that are empty or fail to parse as the column's kind become null.
func (r *Reader) ReadAll(schema ef.Schema) (*ef.Frame, error) {
	f := ef.NewFrame(schema)
	for {
		var rec []string
		if len(r.buf) > 0 {
			rec, r.buf = r.buf[0], r.buf[1:]
		} else {
			next, err := r.r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			rec = next
		}
		if err := r.appendRecord(f, schema, rec); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (r *Reader) appendRecord(f *ef.Frame, schema ef.Schema, rec []string) error {
	switch {
	case len(rec) > len(schema.Columns):
		r.longRecords++
		if r.opt.Strict {
			return fmt.Errorf("csv long record at row %d: need %d fields, got %d", f.Rows()+1, len(schema.Columns), len(rec))
		}
	case len(rec) < len(schema.Columns):
		r.shortRecords++
		if r.opt.Strict {
			return fmt.Errorf("csv short record at row %d: need %d fields, got %d", f.Rows()+1, len(schema.Columns), len(rec))
		}
	}
	f.AppendNullRow()
	row := f.Rows() - 1
	for i, cs := range schema.Columns {
		if i >= len(rec) {
			break
		}
		val := strings.ToValidUTF8(strings.TrimSpace(rec[i]), "?")
		if val == "" {
			continue
		}
		if cell, ok := parseCell(cs.Type, val); ok {
			_ = f.SetCell(row, cs.Name, cell)
		}
	}
	return nil
}

func parseCell(k ef.Kind, val string) (any, bool) {
	switch k {
	case ef.KindFloat:
		x, err := strconv.ParseFloat(val, 64)
		return x, err == nil
	case ef.KindInt:
		x, err := strconv.ParseInt(val, 10, 64)
		return x, err == nil
	case ef.KindBool:
		x, err := strconv.ParseBool(strings.ToLower(val))
		return x, err == nil
	case ef.KindTime:
		// times are parsed downstream with the configured layouts
		return nil, false
	default:
		return val, true
	}
}

var numre = regexp.MustCompile(`^[-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?$`)

func inferKinds(rows [][]string, ncol int) []ef.Kind {
	kinds := make([]ef.Kind, ncol)
	for c := 0; c < ncol; c++ {
		num, integer, str := 0, 0, 0
		for _, row := range rows {
			if c >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[c])
			if v == "" {
				continue
			}
			if numre.MatchString(v) {
				num++
				if !strings.ContainsAny(v, ".eE") {
					integer++
				}
				continue
			}
			str++
		}
		switch {
		case num > 0 && str == 0 && integer == num:
			kinds[c] = ef.KindInt
		case num > 0 && str == 0:
			kinds[c] = ef.KindFloat
		default:
			kinds[c] = ef.KindString
		}
	}
	return kinds
}

func sniffDelimiter(sample []byte) (rune, bool) {
	if len(sample) == 0 {
		return ',', false
	}
	if i := bytes.IndexByte(sample, '\n'); i > 0 {
		sample = sample[:i]
	}
	best, bestCount := byte(','), 0
	for _, c := range []byte{',', '\t', ';', '|'} {
		if n := bytes.Count(sample, []byte{c}); n > bestCount {
			best, bestCount = c, n
		}
	}
	return rune(best), bytes.Count(sample, []byte{'"'})%2 != 0
}

// Warnings summarises any record-length mismatches repaired while reading.
func (r *Reader) Warnings() string {
	if r.shortRecords == 0 && r.longRecords == 0 {
		return ""
	}
	var parts []string
	if r.shortRecords > 0 {
		parts = append(parts, fmt.Sprintf("short_records=%d", r.shortRecords))
	}
	if r.longRecords > 0 {
		parts = append(parts, fmt.Sprintf("long_records=%d", r.longRecords))
	}
	return strings.Join(parts, ", ")
}
