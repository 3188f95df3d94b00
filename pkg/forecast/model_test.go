package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSeries(days int) ([]time.Time, []float64) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := make([]time.Time, days)
	y := make([]float64, days)
	for i := range ds {
		ds[i] = start.AddDate(0, 0, i)
		y[i] = 100 + 2*float64(i)
	}
	return ds, y
}

func TestFitReproducesLinearTrend(t *testing.T) {
	ds, y := linearSeries(730)
	m, err := Fit(ds, y, Options{})
	require.NoError(t, err)

	maxAbs := y[len(y)-1]
	for i := 0; i < len(ds); i += 17 {
		assert.InDelta(t, y[i], m.Predict(ds[i]), 0.02*maxAbs, "day %d", i)
	}
}

func TestFutureAppendsHorizon(t *testing.T) {
	ds, y := linearSeries(30)
	// repeated observations collapse in the history
	ds = append(ds, ds[0])
	y = append(y, y[0])
	m, err := Fit(ds, y, Options{})
	require.NoError(t, err)

	fut := m.Future(90, 24*time.Hour)
	require.Len(t, fut, 120)
	assert.Equal(t, ds[0], fut[0])
	assert.Equal(t, ds[29].AddDate(0, 0, 90), fut[119])

	pts := m.Forecast(fut[:3])
	require.Len(t, pts, 3)
	assert.Equal(t, fut[2], pts[2].DS)
	assert.False(t, math.IsNaN(pts[2].YHat))
}

func TestFitInsufficientData(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := Fit([]time.Time{day}, []float64{1}, Options{})
	assert.True(t, errors.Is(err, ErrInsufficientData))

	_, err = Fit([]time.Time{day, day, day}, []float64{1, 2, 3}, Options{})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Fit([]time.Time{day, day.AddDate(0, 0, 1)}, []float64{1, math.NaN()}, Options{})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Fit([]time.Time{day}, []float64{1, 2}, Options{})
	assert.Error(t, err)
}

func TestFitAllZeroSeries(t *testing.T) {
	ds, _ := linearSeries(10)
	m, err := Fit(ds, make([]float64, 10), Options{YearlyOrder: 3})
	require.NoError(t, err)
	assert.InDelta(t, 0, m.Predict(ds[5]), 1e-9)
}
