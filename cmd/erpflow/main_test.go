package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/wdm0006/erpflow/pkg/pipeline"
	"github.com/wdm0006/erpflow/pkg/transform/validate"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "erpflow "+version+"\n", out)
}

func writeFixture(t *testing.T, quantity int) string {
	t.Helper()
	dir := t.TempDir()
	erpDB := filepath.Join(dir, "erp.db")
	db, err := sql.Open("sqlite", erpDB)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE po (PurchaseOrder TEXT, Item TEXT, Quantity INTEGER, UnitPrice REAL, DeliveryDate TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO po VALUES ('PO1', 'A', ?, 10.0, '2024-03-01')`, quantity)
	require.NoError(t, err)

	cfg := fmt.Sprintf(`
logging:
  level: error
  output: file
  file: %s
sources:
  sap:
    driver: sqlite
    dsn: %s
    query: SELECT * FROM po
datasets:
  - name: procurement
    kind: procurement
    sources: [sap]
    table: ERP_PROCUREMENT
    rules:
      Quantity: {type: range, min: 0, max: 1000000}
      UnitPrice: {type: not_null}
object_store:
  kind: local
  dir: %s
warehouse:
  kind: sqlite
  dsn: %s
`, filepath.Join(dir, "erpflow.log"), erpDB, filepath.Join(dir, "objects"), filepath.Join(dir, "wh.db"))
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(cfg), 0o600))
	return p
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", "--config", writeFixture(t, 5), "--dataset", "procurement")
	require.NoError(t, err)
	assert.Contains(t, out, "procurement: no validation issues")

	out, err = execute(t, "validate", "--config", writeFixture(t, -5), "--dataset", "procurement", "--profile")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrValidation))
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, out, "sap\tQuantity: 1 values out of range [0, 1e+06]")
	assert.Contains(t, out, "Profile Summary")
}

func TestRunCommandDryRun(t *testing.T) {
	out, err := execute(t, "run", "--config", writeFixture(t, 5), "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "procurement\t1 rows")
}

func TestRunCommandLoads(t *testing.T) {
	cfg := writeFixture(t, 5)
	out, err := execute(t, "run", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "processed/procurement_")
	assert.Contains(t, out, "ERP_PROCUREMENT")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestPrintIssuesSortedBySource(t *testing.T) {
	verr := &pipeline.ValidationError{Dataset: "procurement", Issues: map[string][]validate.Issue{
		"sap":       {{Column: "Quantity", Rule: validate.TypeRange, Count: 1, Detail: "Quantity: 1 values out of range [0, 1e+06]"}},
		"legacy_po": {{Column: "UnitPrice", Rule: validate.TypeNotNull, Count: 2, Detail: "UnitPrice: 2 null values"}},
	}}
	var out bytes.Buffer
	printIssues(&out, verr)
	assert.Equal(t, "legacy_po\tUnitPrice: 2 null values\nsap\tQuantity: 1 values out of range [0, 1e+06]\n", out.String())
}
