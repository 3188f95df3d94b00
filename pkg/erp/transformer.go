package erp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/zoobzio/clockz"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
	"github.com/wdm0006/erpflow/pkg/forecast"
	agg "github.com/wdm0006/erpflow/pkg/transform/aggregate"
	"github.com/wdm0006/erpflow/pkg/transform/derive"
	"github.com/wdm0006/erpflow/pkg/transform/window"
)

// Transformer builds the derived datasets.
type Transformer struct {
	params Params
	clock  clockz.Clock
	log    *slog.Logger
}

// NewTransformer returns a Transformer. A nil clock means the real clock and
// a nil logger discards output.
func NewTransformer(p Params, clock clockz.Clock, log *slog.Logger) *Transformer {
	if clock == nil {
		clock = clockz.RealClock
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Transformer{params: p, clock: clock, log: log}
}

// Procurement merges procurement extracts into one row per (purchase order,
// item) with total cost, days to delivery and a trailing cost trend.
// DeliveryDate keeps the first value seen in each group.
func (t *Transformer) Procurement(ctx context.Context, inputs ...*ef.Frame) (*ef.Frame, error) {
	all, err := ef.Concat(inputs...)
	if err != nil {
		return nil, fmt.Errorf("procurement: %w", err)
	}
	all = all.DropDuplicates()

	p := ef.NewPipeline(
		&agg.GroupBy{
			Keys: []string{ColPurchaseOrder, ColItem},
			Aggs: []agg.Agg{
				{Column: ColQuantity, Func: agg.Sum},
				{Column: ColUnitPrice, Func: agg.Mean},
				{Column: ColDeliveryDate, Func: agg.First},
			},
		},
		&derive.Product{Left: ColQuantity, Right: ColUnitPrice, As: ColTotalCost},
		&derive.ToTime{Column: ColDeliveryDate, Layouts: t.params.DateLayouts},
		&derive.DaysUntil{Column: ColDeliveryDate, As: ColDaysToDelivery, Now: t.clock.Now},
		&window.RollingMean{Column: ColTotalCost, As: ColCostTrend, Window: t.params.RollingWindow, MinPeriods: 1},
	)
	out, err := p.Run(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("procurement: %w", err)
	}
	t.log.InfoContext(ctx, "transformed procurement data", "inputs", len(inputs), "rows_in", all.Rows(), "rows_out", out.Rows())
	return out, nil
}

// PnL sums balances per (account, period, entity), labels revenue and
// expense accounts, converts to USD and attaches a forecast of the USD
// series. The forecast is fit once over all rows, so entities sharing a
// period share the forecasted value.
func (t *Transformer) PnL(ctx context.Context, in *ef.Frame) (*ef.Frame, error) {
	p := ef.NewPipeline(
		&agg.GroupBy{
			Keys: []string{ColAccountCode, ColPeriod, ColEntity},
			Aggs: []agg.Agg{{Column: ColAmount, Func: agg.Sum}},
		},
		&derive.PrefixLabel{Column: ColAccountCode, Prefix: t.params.RevenuePrefix, Match: CategoryRevenue, Otherwise: CategoryExpense, As: ColCategory},
		&derive.Scale{Column: ColAmount, Factor: t.params.CurrencyFactor, As: ColAmountUSD},
		ef.TransformFunc{Label: "forecast", Fn: t.attachForecast},
	)
	out, err := p.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("pnl: %w", err)
	}
	t.log.InfoContext(ctx, "transformed pnl data with forecast", "rows_in", in.Rows(), "rows_out", out.Rows(), "horizon", t.params.ForecastHorizon)
	return out, nil
}

func (t *Transformer) attachForecast(ctx context.Context, f *ef.Frame) (*ef.Frame, error) {
	periods, err := periodTimes(f, t.params.DateLayouts)
	if err != nil {
		return nil, err
	}
	usd, _ := f.ColumnByName(ColAmountUSD)
	ys := make([]float64, f.Rows())
	for i := range ys {
		v, ok := ef.Float(usd, i)
		if !ok {
			v = math.NaN()
		}
		ys[i] = v
	}
	model, err := forecast.Fit(periods, ys, t.params.Forecast)
	if err != nil {
		return nil, err
	}
	yhat := map[int64]float64{}
	for _, pt := range model.Forecast(model.Future(t.params.ForecastHorizon, 24*time.Hour)) {
		yhat[pt.DS.UnixNano()] = pt.YHat
	}
	out := ef.NewFloatColumn(ColForecastedAmount, 0)
	for _, ts := range periods {
		v, ok := yhat[ts.UnixNano()]
		if ts.IsZero() || !ok {
			out.AppendNull()
			continue
		}
		out.Append(v)
	}
	return f, f.AddColumn(out)
}

// periodTimes reads the Period column as UTC times; null periods map to the
// zero time.
func periodTimes(f *ef.Frame, layouts []string) ([]time.Time, error) {
	col, ok := f.ColumnByName(ColPeriod)
	if !ok {
		return nil, fmt.Errorf("no such column %s", ColPeriod)
	}
	out := make([]time.Time, col.Len())
	for i := range out {
		switch v := col.Value(i).(type) {
		case nil:
		case time.Time:
			out[i] = v.UTC()
		case string:
			ts, err := derive.ParseTime(v, layouts)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", ColPeriod, i, err)
			}
			out[i] = ts.UTC()
		default:
			return nil, fmt.Errorf("%s is %v, want string or time", ColPeriod, col.Kind())
		}
	}
	return out, nil
}

// Margin summarises line-level margins per item with a margin percentage
// and a Loss/Low/High profitability bucket.
func (t *Transformer) Margin(ctx context.Context, in *ef.Frame) (*ef.Frame, error) {
	p := ef.NewPipeline(
		&agg.GroupBy{
			Keys: []string{ColItemNumber},
			Aggs: []agg.Agg{
				{Column: ColMargin, Func: agg.Sum},
				{Column: ColUnitPrice, Func: agg.Mean},
				{Column: ColUnitCost, Func: agg.Mean},
				{Column: ColQuantitySold, Func: agg.Sum},
			},
		},
		&derive.Percent{Numerator: ColMargin, Denominators: []string{ColUnitPrice, ColQuantitySold}, As: ColMarginPercentage},
		&derive.Bucket{
			Column: ColMargin,
			Edges:  []float64{t.params.MarginLow, t.params.MarginHigh},
			Labels: []string{ProfitLoss, ProfitLow, ProfitHigh},
			As:     ColProfitability,
		},
	)
	out, err := p.Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("margin: %w", err)
	}
	t.log.InfoContext(ctx, "transformed product margin data", "rows_in", in.Rows(), "rows_out", out.Rows())
	return out, nil
}
