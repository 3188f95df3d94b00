package erpflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
)

func doubleColumn(name string) ef.Transform {
	return ef.TransformFunc{Label: "double_" + name, Fn: func(_ context.Context, f *ef.Frame) (*ef.Frame, error) {
		c, _ := f.ColumnByName(name)
		fc := c.(*ef.FloatColumn)
		for i := 0; i < fc.Len(); i++ {
			if v, ok := fc.Get(i); ok {
				fc.Set(i, v*2)
			}
		}
		return f, nil
	}}
}

func TestPipeline(t *testing.T) {
	s := ef.Schema{Columns: []ef.ColumnSchema{{Name: "x", Type: ef.KindFloat, Nullable: true}}}
	f := ef.NewFrame(s)
	require.NoError(t, f.AppendRow(1.5))
	require.NoError(t, f.AppendRow(nil))

	p := ef.NewPipeline(doubleColumn("x")).Add(doubleColumn("x"))
	assert.Equal(t, []string{"double_x", "double_x"}, p.Steps())

	out, err := p.Run(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 6.0, out.Value(0, "x"))
	assert.Nil(t, out.Value(1, "x"))
}

func TestPipelineWrapsStepError(t *testing.T) {
	boom := errors.New("boom")
	failing := ef.TransformFunc{Label: "fail", Fn: func(context.Context, *ef.Frame) (*ef.Frame, error) { return nil, boom }}
	called := false
	after := ef.TransformFunc{Label: "after", Fn: func(_ context.Context, f *ef.Frame) (*ef.Frame, error) {
		called = true
		return f, nil
	}}

	_, err := ef.NewPipeline(failing, after).Run(context.Background(), ef.NewFrame(ef.Schema{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "fail: boom", err.Error())
	assert.False(t, called)
}

func TestPipelineStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ef.NewPipeline(doubleColumn("x")).Run(ctx, ef.NewFrame(ef.Schema{}))
	assert.ErrorIs(t, err, context.Canceled)
}
