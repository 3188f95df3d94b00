package extract

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

// Supported database/sql driver names.
const (
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "pgx"
	DriverSQLite    = "sqlite"
)

// SQLSource runs one query against an ERP database.
type SQLSource struct {
	name   string
	driver string
	dsn    string
	query  string
	log    *slog.Logger
}

// NewSQLSource returns a source for the given driver. The connection is
// opened on each Extract call and closed before it returns.
func NewSQLSource(name, driver, dsn, query string, log *slog.Logger) (*SQLSource, error) {
	switch driver {
	case DriverSQLServer, DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("source %s: unsupported driver %q", name, driver)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("source %s: empty query", name)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SQLSource{name: name, driver: driver, dsn: dsn, query: query, log: log}, nil
}

func (s *SQLSource) Name() string { return s.name }

func (s *SQLSource) Extract(ctx context.Context) (*ef.Frame, error) {
	f, err := s.extract(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "extraction failed", "source", s.name, "driver", s.driver, "error", err)
		return nil, fmt.Errorf("extract %s: %w", s.name, err)
	}
	s.log.InfoContext(ctx, "extracted data", "source", s.name, "driver", s.driver, "rows", f.Rows(), "cols", f.Cols())
	return f, nil
}

func (s *SQLSource) extract(ctx context.Context) (*ef.Frame, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	rows, err := db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return ScanRows(rows)
}

// ScanRows reads a result set into a frame. Column kinds come from the
// driver's database type names; columns the driver does not describe are
// typed from their values.
func ScanRows(rows *sql.Rows) (*ef.Frame, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	var data [][]any
	for rows.Next() {
		vals := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	schema := ef.Schema{Columns: make([]ef.ColumnSchema, len(types))}
	for i, ct := range types {
		k := kindForDatabaseType(ct.DatabaseTypeName())
		if k == ef.KindInvalid {
			k = inferKind(data, i)
		}
		schema.Columns[i] = ef.ColumnSchema{Name: ct.Name(), Type: k, Nullable: true}
	}

	f := ef.NewFrame(schema)
	for r, vals := range data {
		f.AppendNullRow()
		for i, cs := range schema.Columns {
			cell, err := convertCell(cs.Type, vals[i])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", r, cs.Name, err)
			}
			if err := f.SetCell(r, cs.Name, cell); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func kindForDatabaseType(name string) ef.Kind {
	n := strings.ToUpper(name)
	if i := strings.IndexByte(n, '('); i >= 0 {
		n = n[:i]
	}
	switch n {
	case "BOOL", "BOOLEAN", "BIT":
		return ef.KindBool
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "INT2", "INT4", "INT8":
		return ef.KindInt
	case "REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION",
		"DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return ef.KindFloat
	case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT", "BPCHAR", "UUID", "UNIQUEIDENTIFIER":
		return ef.KindString
	case "DATE", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET", "TIMESTAMP", "TIMESTAMPTZ":
		return ef.KindTime
	}
	return ef.KindInvalid
}

// inferKind types a column from its scanned values: all integers give int,
// any mix of numbers gives float, and anything else gives string.
func inferKind(data [][]any, col int) ef.Kind {
	var ints, floats, bools, times, other int
	for _, row := range data {
		switch row[col].(type) {
		case nil:
		case int64, int32, int:
			ints++
		case float64, float32:
			floats++
		case bool:
			bools++
		case time.Time:
			times++
		default:
			other++
		}
	}
	switch {
	case other > 0:
		return ef.KindString
	case ints > 0 && floats == 0 && bools == 0 && times == 0:
		return ef.KindInt
	case ints+floats > 0 && bools == 0 && times == 0:
		return ef.KindFloat
	case bools > 0 && ints+floats+times == 0:
		return ef.KindBool
	case times > 0 && ints+floats+bools == 0:
		return ef.KindTime
	}
	return ef.KindString
}

func convertCell(k ef.Kind, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil, nil
	}
	switch k {
	case ef.KindInt:
		switch t := v.(type) {
		case int64:
			return t, nil
		case int32:
			return int64(t), nil
		case int:
			return int64(t), nil
		case float64:
			return int64(t), nil
		case bool:
			if t {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		}
	case ef.KindFloat:
		switch t := v.(type) {
		case float64:
			return t, nil
		case float32:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case int32:
			return float64(t), nil
		case string:
			return strconv.ParseFloat(strings.TrimSpace(t), 64)
		}
	case ef.KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case int64:
			return t != 0, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(t))
		}
	case ef.KindTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
				if ts, err := time.Parse(layout, t); err == nil {
					return ts, nil
				}
			}
			return nil, fmt.Errorf("unparsable time %q", t)
		}
	case ef.KindString:
		switch t := v.(type) {
		case string:
			return t, nil
		case time.Time:
			return t.Format(time.RFC3339), nil
		default:
			return fmt.Sprint(t), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %v", v, k)
}
