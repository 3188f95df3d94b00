package csvio

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

const procurementCSV = "PurchaseOrder;Item;Quantity;UnitPrice;DeliveryDate\n" +
	"PO1;A;5;10.5;2024-03-01\n" +
	"PO1;A;3;12;2024-03-01\n" +
	"PO2;B;;7.25;\n"

func writeFile(t *testing.T, name, body string, compress bool) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	if compress {
		zw := gzip.NewWriter(f)
		_, err = zw.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return p
	}
	_, err = f.WriteString(body)
	require.NoError(t, err)
	return p
}

func TestReadFileInfersKinds(t *testing.T) {
	p := writeFile(t, "po.csv", procurementCSV, false)
	f, warn, err := ReadFile(p, ReaderOptions{HasHeader: true})
	require.Empty(t, warn)
	require.NoError(t, err)
	require.Equal(t, 3, f.Rows())

	kinds := map[string]ef.Kind{}
	for _, cs := range f.Schema().Columns {
		kinds[cs.Name] = cs.Type
	}
	assert.Equal(t, ef.KindString, kinds["PurchaseOrder"])
	assert.Equal(t, ef.KindInt, kinds["Quantity"])
	assert.Equal(t, ef.KindFloat, kinds["UnitPrice"])
	assert.Equal(t, ef.KindString, kinds["DeliveryDate"])
	assert.Nil(t, f.Value(2, "Quantity"))
	assert.Nil(t, f.Value(2, "DeliveryDate"))
	assert.Equal(t, 12.0, f.Value(1, "UnitPrice"))
}

func TestReadFileGzip(t *testing.T) {
	p := writeFile(t, "po.csv.gz", strings.ReplaceAll(procurementCSV, ";", ","), true)
	f, warn, err := ReadFile(p, ReaderOptions{HasHeader: true})
	require.Empty(t, warn)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Rows())
	assert.Equal(t, "PO2", f.Value(2, "PurchaseOrder"))
}

func TestPinnedKinds(t *testing.T) {
	p := writeFile(t, "po.csv", procurementCSV, false)
	f, _, err := ReadFile(p, ReaderOptions{HasHeader: true, Kinds: map[string]ef.Kind{"Quantity": ef.KindFloat}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, f.Value(0, "Quantity"))
}

func TestStrictShortRecord(t *testing.T) {
	r := NewReaderFrom(strings.NewReader("a,b\n1\n"), ReaderOptions{HasHeader: true, Strict: true})
	schema, _, err := r.InferSchema()
	require.NoError(t, err)
	_, err = r.ReadAll(schema)
	assert.Error(t, err)

	r = NewReaderFrom(strings.NewReader("a,b\n1\n"), ReaderOptions{HasHeader: true})
	schema, _, err = r.InferSchema()
	require.NoError(t, err)
	f, err := r.ReadAll(schema)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Rows())
	assert.Equal(t, "short_records=1", r.Warnings())
}

func TestReadFileReportsRepairs(t *testing.T) {
	p := writeFile(t, "ragged.csv", "Item,Quantity\nA,1\nB\nC,3,extra\nD,4\n", false)
	f, warn, err := ReadFile(p, ReaderOptions{HasHeader: true})
	require.NoError(t, err)
	assert.Equal(t, 4, f.Rows())
	assert.Equal(t, "short_records=1, long_records=1", warn)
	assert.Nil(t, f.Value(1, "Quantity"))
}
