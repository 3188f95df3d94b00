package validate

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

func ptr(v float64) *float64 { return &v }

func procurement(t *testing.T) *ef.Frame {
	t.Helper()
	f := ef.NewFrame(ef.Schema{Columns: []ef.ColumnSchema{
		{Name: "Item", Type: ef.KindString, Nullable: true},
		{Name: "Quantity", Type: ef.KindInt, Nullable: true},
		{Name: "UnitPrice", Type: ef.KindFloat, Nullable: true},
	}})
	require.NoError(t, f.AppendRow("A", int64(-5), 10.0))
	require.NoError(t, f.AppendRow("B", int64(5), nil))
	require.NoError(t, f.AppendRow(nil, nil, nil))
	return f
}

func TestValidateNegativeQuantity(t *testing.T) {
	rules := Rules{"Quantity": {Type: TypeRange, Min: ptr(0), Max: ptr(1000000)}}
	issues := Validate(procurement(t), rules)
	require.Len(t, issues, 1)
	assert.Equal(t, "Quantity", issues[0].Column)
	assert.Equal(t, TypeRange, issues[0].Rule)
	assert.Equal(t, 1, issues[0].Count)
	assert.Equal(t, "Quantity: 1 values out of range [0, 1e+06]", issues[0].String())
}

func TestValidateSortedAndSkipsMissing(t *testing.T) {
	rules := Rules{
		"UnitPrice": {Type: TypeNotNull},
		"Item":      {Type: TypeInSet, Values: []string{"A"}},
		"Vendor":    {Type: TypeNotNull},
		"Quantity":  {Type: TypeRange, Min: ptr(0)},
	}
	issues := Validate(procurement(t), rules)
	assert.Equal(t, []string{
		"Item: 1 values outside allowed set",
		"Quantity: 1 values out of range [0, inf]",
		"UnitPrice: 2 null values",
	}, Details(issues))
}

func TestValidateRangeOnStringColumn(t *testing.T) {
	issues := Validate(procurement(t), Rules{"Item": {Type: TypeRange, Min: ptr(0)}})
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Count)
	assert.Equal(t, "Item: 2 string values cannot satisfy a range rule", issues[0].Detail)
}

func TestValidateRangeOnAllNullStringColumn(t *testing.T) {
	f := ef.NewFrame(ef.Schema{Columns: []ef.ColumnSchema{{Name: "Item", Type: ef.KindString, Nullable: true}}})
	f.AppendNullRow()
	f.AppendNullRow()
	assert.Empty(t, Validate(f, Rules{"Item": {Type: TypeRange, Min: ptr(0)}}))
}

func TestValidateInSetComparesTextOfNonStringColumns(t *testing.T) {
	f := procurement(t)
	issues := Validate(f, Rules{"Quantity": {Type: TypeInSet, Values: []string{"5"}}})
	require.Len(t, issues, 1)
	assert.Equal(t, 1, issues[0].Count)
	assert.Equal(t, "Quantity: 1 values outside allowed set", issues[0].Detail)

	assert.Empty(t, Validate(f, Rules{"Quantity": {Type: TypeInSet, Values: []string{"-5", "5"}}}))
	assert.Empty(t, Validate(f, Rules{"UnitPrice": {Type: TypeInSet, Values: []string{"10"}}}))
}

func TestRuleStepMatchesValidate(t *testing.T) {
	f := procurement(t)
	rules := Rules{
		"UnitPrice": {Type: TypeNotNull},
		"Quantity":  {Type: TypeRange, Min: ptr(0)},
		"Item":      {Type: TypeInSet, Values: []string{"A"}},
	}
	issues := Validate(f, rules)
	require.Len(t, issues, 3)
	for _, is := range issues {
		step, err := rules[is.Column].Step(is.Column)
		require.NoError(t, err)
		_, err = step.Apply(context.Background(), f)
		assert.EqualError(t, err, step.Name()+": "+is.Detail)
	}

	_, err := Rule{Type: "regex"}.Step("Item")
	assert.EqualError(t, err, `unknown rule type "regex"`)
}

func TestValidateUnknownRuleType(t *testing.T) {
	issues := Validate(procurement(t), Rules{"Item": {Type: "regex"}})
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Detail, `unknown rule type "regex"`)
}

func TestValidateCountsMatchBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	f := ef.NewFrame(ef.Schema{Columns: []ef.ColumnSchema{{Name: "v", Type: ef.KindFloat, Nullable: true}}})
	var nulls, outside int
	for i := 0; i < 500; i++ {
		if rng.Intn(5) == 0 {
			f.AppendNullRow()
			nulls++
			continue
		}
		v := rng.Float64()*200 - 100
		if v < -10 || v > 10 {
			outside++
		}
		require.NoError(t, f.AppendRow(v))
	}

	issues := Validate(f, Rules{"v": {Type: TypeNotNull}})
	if nulls > 0 {
		require.Len(t, issues, 1)
		assert.Equal(t, nulls, issues[0].Count)
	}
	issues = Validate(f, Rules{"v": {Type: TypeRange, Min: ptr(-10), Max: ptr(10)}})
	require.Len(t, issues, 1)
	assert.Equal(t, outside, issues[0].Count)
}

func TestCheckTransforms(t *testing.T) {
	f := procurement(t)
	ctx := context.Background()

	_, err := (&NotNull{Column: "UnitPrice"}).Apply(ctx, f)
	assert.ErrorContains(t, err, "2 null values")
	_, err = (&NotNull{Column: "Missing"}).Apply(ctx, f)
	assert.NoError(t, err)

	_, err = (&Range{Column: "Quantity", Min: ptr(0)}).Apply(ctx, f)
	assert.Error(t, err)
	_, err = (&Range{Column: "Quantity", Max: ptr(10)}).Apply(ctx, f)
	assert.NoError(t, err)

	_, err = NewInSet("Item", []string{"A", "B"}).Apply(ctx, f)
	assert.NoError(t, err)
	_, err = NewInSet("Item", []string{"A"}).Apply(ctx, f)
	assert.Error(t, err)
}
