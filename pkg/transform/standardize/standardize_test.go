package standardize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

func sapFrame(t *testing.T) *ef.Frame {
	t.Helper()
	f := ef.NewFrame(ef.Schema{Columns: []ef.ColumnSchema{
		{Name: "Item", Type: ef.KindString, Nullable: true},
		{Name: "Entity", Type: ef.KindString, Nullable: true},
		{Name: "Quantity", Type: ef.KindInt, Nullable: true},
	}})
	require.NoError(t, f.AppendRow("  000000000000001234 ", "DE01", int64(5)))
	require.NoError(t, f.AppendRow("ABC  ", "US", nil))
	require.NoError(t, f.AppendRow(nil, nil, int64(2)))
	return f
}

func run(t *testing.T, f *ef.Frame, o Options) *ef.Frame {
	t.Helper()
	steps, err := Steps(o)
	require.NoError(t, err)
	out, err := ef.NewPipeline(steps...).Run(context.Background(), f)
	require.NoError(t, err)
	return out
}

func TestStepsCleanSourceFrame(t *testing.T) {
	o := Options{
		Trim:    true,
		Replace: []Replace{{Column: "Item", Pattern: "^0+", With: ""}},
		Map:     map[string]map[string]string{"Entity": {"DE01": "DE"}},
		Fill:    map[string]any{"Quantity": 0, "Item": "UNKNOWN"},
	}
	assert.False(t, o.Empty())
	out := run(t, sapFrame(t), o)

	assert.Equal(t, "1234", out.Value(0, "Item"))
	assert.Equal(t, "ABC", out.Value(1, "Item"))
	assert.Equal(t, "UNKNOWN", out.Value(2, "Item"))
	assert.Equal(t, "DE", out.Value(0, "Entity"))
	assert.Equal(t, "US", out.Value(1, "Entity"))
	assert.Nil(t, out.Value(2, "Entity"))
	assert.Equal(t, int64(0), out.Value(1, "Quantity"))
}

func TestStepsOrder(t *testing.T) {
	steps, err := Steps(Options{
		Trim:    true,
		Replace: []Replace{{Column: "Item", Pattern: "x"}},
		Map:     map[string]map[string]string{"b": {}, "a": {}},
		Fill:    map[string]any{"q": 1},
	})
	require.NoError(t, err)
	names := ef.NewPipeline(steps...).Steps()
	assert.Equal(t, []string{"trim", "regex_replace", "map_values", "map_values", "fill"}, names)
	assert.Equal(t, "a", steps[2].(*MapValues).Column)
	assert.True(t, Options{}.Empty())
}

func TestBadPattern(t *testing.T) {
	_, err := Steps(Options{Replace: []Replace{{Column: "Item", Pattern: "("}}})
	assert.Error(t, err)
}

func TestFillKindMismatch(t *testing.T) {
	_, err := (&Fill{Column: "Quantity", Value: "none"}).Apply(context.Background(), sapFrame(t))
	assert.ErrorContains(t, err, "cannot fill int column with string")

	_, err = (&Fill{Column: "Quantity", Value: 1.5}).Apply(context.Background(), sapFrame(t))
	assert.Error(t, err)

	out, err := (&Fill{Column: "Missing", Value: 1}).Apply(context.Background(), sapFrame(t))
	require.NoError(t, err)
	assert.Equal(t, 3, out.Rows())
}
