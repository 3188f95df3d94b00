package load

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
	"github.com/wdm0006/erpflow/pkg/io/parquetio"
)

// Warehouse replaces table with the contents of a staged parquet file.
// Every column is created as text.
type Warehouse interface {
	Load(ctx context.Context, table, stagedPath string, columns []string) error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func checkIdents(table string, columns []string) error {
	if !identRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if len(columns) == 0 {
		return fmt.Errorf("table %s: no columns", table)
	}
	for _, c := range columns {
		if !identRe.MatchString(c) || strings.Contains(c, ".") {
			return fmt.Errorf("table %s: invalid column name %q", table, c)
		}
	}
	return nil
}

// textValue renders a cell the way it is stored in a text column; nil
// stays NULL.
func textValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func readStaged(path string, columns []string) (*ef.Frame, error) {
	f, err := parquetio.ReadAll(path)
	if err != nil {
		return nil, fmt.Errorf("read staged file: %w", err)
	}
	return f.Select(columns...)
}

// SnowflakeOptions are the connection parameters for Snowflake.
type SnowflakeOptions struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
}

// SnowflakeWarehouse stages the parquet file in the table stage and copies
// it in by column name.
type SnowflakeWarehouse struct {
	dsn string
	log *slog.Logger
}

func NewSnowflakeWarehouse(opt SnowflakeOptions, log *slog.Logger) (*SnowflakeWarehouse, error) {
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   opt.Account,
		User:      opt.User,
		Password:  opt.Password,
		Database:  opt.Database,
		Schema:    opt.Schema,
		Warehouse: opt.Warehouse,
		Role:      opt.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("snowflake dsn: %w", err)
	}
	return &SnowflakeWarehouse{dsn: dsn, log: orDiscard(log)}, nil
}

func (w *SnowflakeWarehouse) Load(ctx context.Context, table, stagedPath string, columns []string) error {
	if err := checkIdents(table, columns); err != nil {
		return err
	}
	db, err := sql.Open("snowflake", w.dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	stmts := snowflakeStatements(table, stagedPath, columns)
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("snowflake %s: %w", strings.Fields(q)[0], err)
		}
	}
	w.log.InfoContext(ctx, "loaded warehouse table", "warehouse", "snowflake", "table", table)
	return nil
}

func snowflakeStatements(table, stagedPath string, columns []string) []string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = c + " STRING"
	}
	return []string{
		fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", table, strings.Join(defs, ", ")),
		fmt.Sprintf("PUT 'file://%s' @%%%s OVERWRITE = TRUE", strings.ReplaceAll(stagedPath, `\`, "/"), table),
		fmt.Sprintf("COPY INTO %s FROM @%%%s FILE_FORMAT = (TYPE = PARQUET) MATCH_BY_COLUMN_NAME = CASE_INSENSITIVE PURGE = TRUE", table, table),
	}
}

// PostgresWarehouse recreates the table and bulk-copies the staged rows.
type PostgresWarehouse struct {
	dsn string
	log *slog.Logger
}

func NewPostgresWarehouse(dsn string, log *slog.Logger) *PostgresWarehouse {
	return &PostgresWarehouse{dsn: dsn, log: orDiscard(log)}
}

func (w *PostgresWarehouse) Load(ctx context.Context, table, stagedPath string, columns []string) error {
	if err := checkIdents(table, columns); err != nil {
		return err
	}
	f, err := readStaged(stagedPath, columns)
	if err != nil {
		return err
	}
	conn, err := pgx.Connect(ctx, w.dsn)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ident := pgx.Identifier(strings.Split(table, "."))
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pgx.Identifier{c}.Sanitize() + " TEXT"
	}
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
		return fmt.Errorf("postgres drop %s: %w", table, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", ident.Sanitize(), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("postgres create %s: %w", table, err)
	}
	n, err := tx.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(textRows(f, columns)))
	if err != nil {
		return fmt.Errorf("postgres copy %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	w.log.InfoContext(ctx, "loaded warehouse table", "warehouse", "postgres", "table", table, "rows", n)
	return nil
}

// SQLiteWarehouse recreates the table inside one transaction.
type SQLiteWarehouse struct {
	dsn string
	log *slog.Logger
}

func NewSQLiteWarehouse(dsn string, log *slog.Logger) *SQLiteWarehouse {
	return &SQLiteWarehouse{dsn: dsn, log: orDiscard(log)}
}

func (w *SQLiteWarehouse) Load(ctx context.Context, table, stagedPath string, columns []string) error {
	if err := checkIdents(table, columns); err != nil {
		return err
	}
	f, err := readStaged(stagedPath, columns)
	if err != nil {
		return err
	}
	db, err := sql.Open("sqlite", w.dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	quoted := make([]string, len(columns))
	defs := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = `"` + c + `"`
		defs[i] = quoted[i] + " TEXT"
		marks[i] = "?"
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)); err != nil {
		return fmt.Errorf("sqlite drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE "%s" (%s)`, table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("sqlite create %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`, table, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, row := range textRows(f, columns) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("sqlite insert %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	w.log.InfoContext(ctx, "loaded warehouse table", "warehouse", "sqlite", "table", table, "rows", f.Rows())
	return nil
}

func textRows(f *ef.Frame, columns []string) [][]any {
	out := make([][]any, f.Rows())
	for r := range out {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = textValue(f.Value(r, c))
		}
		out[r] = row
	}
	return out
}

func orDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return log
}
