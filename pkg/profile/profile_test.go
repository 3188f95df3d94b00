package profile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

func TestProfile(t *testing.T) {
	f := ef.NewFrame(ef.Schema{Columns: []ef.ColumnSchema{
		{Name: "Item", Type: ef.KindString, Nullable: true},
		{Name: "Quantity", Type: ef.KindInt, Nullable: true},
		{Name: "MarginPercentage", Type: ef.KindFloat, Nullable: true},
	}})
	require.NoError(t, f.AppendRow("A", int64(5), 10.0))
	require.NoError(t, f.AppendRow("A", int64(3), math.Inf(1)))
	require.NoError(t, f.AppendRow("B", nil, 20.0))
	require.NoError(t, f.AppendRow(nil, int64(10), nil))

	cols := Of(f, 1).Columns()
	require.Len(t, cols, 3)

	assert.Equal(t, 3, cols[0].Val.Count)
	assert.Equal(t, 1, cols[0].Val.Nulls)

	q := cols[1].Num
	assert.Equal(t, 3, q.Count)
	assert.Equal(t, 1, q.Nulls)
	assert.Equal(t, 3.0, q.Min)
	assert.Equal(t, 10.0, q.Max)
	assert.Equal(t, 6.0, q.Mean())

	m := cols[2].Num
	assert.Equal(t, 2, m.Count)
	assert.Equal(t, 1, m.NaN)
	assert.Equal(t, 15.0, m.Mean())

	text := Of(f, 1).ReportText()
	assert.Contains(t, text, "- Quantity (int): count=3 nulls=1 min=3 max=10 mean=6")
	assert.Contains(t, text, `  * "A": 2`)
	assert.NotContains(t, text, `"B"`)
	assert.Len(t, Of(f, 0).LogAttrs(), 3)
}
