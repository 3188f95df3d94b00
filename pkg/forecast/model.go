// Package forecast fits an additive univariate time-series model: a linear
// trend plus yearly Fourier seasonality, estimated by ridge-regularised
// least squares. The priors mirror the defaults of common additive
// forecasting tools so that short histories still produce a fit.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientData is returned by Fit when the series holds fewer than
// two usable observations at distinct times.
var ErrInsufficientData = errors.New("forecast: need at least two observations at distinct times")

const yearDays = 365.25

// Options tune the model. Zero values select the defaults.
type Options struct {
	// YearlyOrder is the number of Fourier pairs for yearly seasonality (default 10).
	YearlyOrder int
	// SeasonalityPriorScale is the prior standard deviation of seasonal
	// coefficients (default 10).
	SeasonalityPriorScale float64
	// TrendPriorScale is the prior standard deviation of the intercept and
	// slope on the scaled series (default 5).
	TrendPriorScale float64
}

func (o Options) withDefaults() Options {
	if o.YearlyOrder <= 0 {
		o.YearlyOrder = 10
	}
	if o.SeasonalityPriorScale <= 0 {
		o.SeasonalityPriorScale = 10
	}
	if o.TrendPriorScale <= 0 {
		o.TrendPriorScale = 5
	}
	return o
}

// Model is a fitted additive model.
type Model struct {
	opt     Options
	start   time.Time
	span    float64 // seconds between first and last observation
	yScale  float64
	coef    []float64
	history []time.Time // distinct observation times, ascending
}

// Fit estimates the model from observations (ds[i], y[i]). NaN values and
// zero times are ignored. Repeated times are kept as separate observations.
func Fit(ds []time.Time, y []float64, opt Options) (*Model, error) {
	if len(ds) != len(y) {
		return nil, fmt.Errorf("forecast: %d times but %d values", len(ds), len(y))
	}
	opt = opt.withDefaults()
	var ts []time.Time
	var ys []float64
	for i := range ds {
		if ds[i].IsZero() || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		ts = append(ts, ds[i].UTC())
		ys = append(ys, y[i])
	}
	hist := distinct(ts)
	if len(ys) < 2 || len(hist) < 2 {
		return nil, ErrInsufficientData
	}

	m := &Model{opt: opt, start: hist[0], span: hist[len(hist)-1].Sub(hist[0]).Seconds(), history: hist}
	for _, v := range ys {
		m.yScale = math.Max(m.yScale, math.Abs(v))
	}
	if m.yScale == 0 {
		m.yScale = 1
	}

	p := m.width()
	x := mat.NewDense(len(ts), p, nil)
	yv := mat.NewVecDense(len(ys), nil)
	for i, t := range ts {
		x.SetRow(i, m.features(t))
		yv.SetVec(i, ys[i]/m.yScale)
	}

	var a mat.Dense
	a.Mul(x.T(), x)
	for j := 0; j < p; j++ {
		scale := opt.SeasonalityPriorScale
		if j < 2 {
			scale = opt.TrendPriorScale
		}
		a.Set(j, j, a.At(j, j)+1/(scale*scale))
	}
	var b mat.VecDense
	b.MulVec(x.T(), yv)
	var beta mat.VecDense
	if err := beta.SolveVec(&a, &b); err != nil {
		return nil, fmt.Errorf("forecast: solve: %w", err)
	}
	m.coef = make([]float64, p)
	for j := range m.coef {
		m.coef[j] = beta.AtVec(j)
	}
	return m, nil
}

func (m *Model) width() int { return 2 + 2*m.opt.YearlyOrder }

func (m *Model) features(t time.Time) []float64 {
	row := make([]float64, m.width())
	row[0] = 1
	row[1] = t.Sub(m.start).Seconds() / m.span
	// seasonality is phased on days since the Unix epoch
	d := float64(t.Unix()) / 86400
	for k := 1; k <= m.opt.YearlyOrder; k++ {
		w := 2 * math.Pi * float64(k) * d / yearDays
		row[2*k] = math.Sin(w)
		row[2*k+1] = math.Cos(w)
	}
	return row
}

// Predict returns the fitted value at t.
func (m *Model) Predict(t time.Time) float64 {
	var s float64
	for j, v := range m.features(t.UTC()) {
		s += v * m.coef[j]
	}
	return s * m.yScale
}

// Future returns the distinct historical times followed by periods further
// points spaced by step after the last observation.
func (m *Model) Future(periods int, step time.Duration) []time.Time {
	out := append([]time.Time(nil), m.history...)
	last := m.history[len(m.history)-1]
	for i := 1; i <= periods; i++ {
		out = append(out, last.Add(time.Duration(i)*step))
	}
	return out
}

// Point is one forecast value.
type Point struct {
	DS   time.Time
	YHat float64
}

// Forecast evaluates the model at each time in ds.
func (m *Model) Forecast(ds []time.Time) []Point {
	out := make([]Point, len(ds))
	for i, t := range ds {
		out[i] = Point{DS: t, YHat: m.Predict(t)}
	}
	return out
}

func distinct(ts []time.Time) []time.Time {
	seen := make(map[int64]struct{}, len(ts))
	var out []time.Time
	for _, t := range ts {
		k := t.UnixNano()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
