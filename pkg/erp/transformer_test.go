package erp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/zoobzio/clockz"

	ef "github.com/wdm0006/erpflow/pkg/erpflow"
	"github.com/wdm0006/erpflow/pkg/forecast"
)

var now = time.Date(2031, 5, 17, 8, 0, 0, 0, time.UTC)

func testTransformer(p Params) *Transformer {
	c := clockz.NewFakeClock()
	c.Advance(now.Sub(c.Now()))
	return NewTransformer(p, c, nil)
}

type poRow struct {
	po       any
	item     any
	qty      any
	price    any
	delivery any
}

func poFrame(rows ...poRow) *ef.Frame {
	f := ef.NewFrame(ef.Schema{Columns: []ef.ColumnSchema{
		{Name: ColPurchaseOrder, Type: ef.KindString, Nullable: true},
		{Name: ColItem, Type: ef.KindString, Nullable: true},
		{Name: ColQuantity, Type: ef.KindInt, Nullable: true},
		{Name: ColUnitPrice, Type: ef.KindFloat, Nullable: true},
		{Name: ColDeliveryDate, Type: ef.KindString, Nullable: true},
	}})
	for _, r := range rows {
		if err := f.AppendRow(r.po, r.item, r.qty, r.price, r.delivery); err != nil {
			panic(err)
		}
	}
	return f
}

func glFrame(rows ...[]any) *ef.Frame {
	f := ef.NewFrame(ef.Schema{Columns: []ef.ColumnSchema{
		{Name: ColAccountCode, Type: ef.KindString, Nullable: true},
		{Name: ColPeriod, Type: ef.KindString, Nullable: true},
		{Name: ColEntity, Type: ef.KindString, Nullable: true},
		{Name: ColAmount, Type: ef.KindFloat, Nullable: true},
	}})
	for _, r := range rows {
		if err := f.AppendRow(r...); err != nil {
			panic(err)
		}
	}
	return f
}

func salesFrame(rows ...[]any) *ef.Frame {
	f := ef.NewFrame(ef.Schema{Columns: []ef.ColumnSchema{
		{Name: ColItemNumber, Type: ef.KindString, Nullable: true},
		{Name: ColMargin, Type: ef.KindFloat, Nullable: true},
		{Name: ColUnitPrice, Type: ef.KindFloat, Nullable: true},
		{Name: ColUnitCost, Type: ef.KindFloat, Nullable: true},
		{Name: ColQuantitySold, Type: ef.KindInt, Nullable: true},
	}})
	for _, r := range rows {
		if err := f.AppendRow(r...); err != nil {
			panic(err)
		}
	}
	return f
}

func sameFrame(a, b *ef.Frame) bool {
	if a.Rows() != b.Rows() || fmt.Sprint(a.Schema()) != fmt.Sprint(b.Schema()) {
		return false
	}
	names := a.Schema().Names()
	for r := 0; r < a.Rows(); r++ {
		if a.RowKey(r, names...) != b.RowKey(r, names...) {
			return false
		}
	}
	return true
}

func TestProcurement(t *testing.T) {
	ctx := context.Background()

	Convey("Given procurement extracts", t, func() {
		tr := testTransformer(DefaultParams())

		Convey("Exact duplicate rows collapse before aggregation", func() {
			in := poFrame(
				poRow{"1", "A", int64(5), 10.0, "2031-05-20"},
				poRow{"1", "A", int64(5), 10.0, "2031-05-20"},
			)
			out, err := tr.Procurement(ctx, in)
			So(err, ShouldBeNil)
			So(out.Rows(), ShouldEqual, 1)
			So(out.Value(0, ColQuantity), ShouldEqual, int64(5))
			So(out.Value(0, ColTotalCost), ShouldEqual, 50.0)
			So(out.Value(0, ColCostTrend), ShouldEqual, 50.0)
		})

		Convey("Inputs from several systems are merged per key in sorted order", func() {
			a := poFrame(
				poRow{"2", "B", int64(1), 4.0, "2031-05-16"},
				poRow{"1", "A", int64(2), 10.0, nil},
			)
			b := poFrame(
				poRow{"1", "A", int64(3), 20.0, "2031-05-20"},
				poRow{nil, "Z", int64(9), 1.0, "2031-05-20"},
			)
			out, err := tr.Procurement(ctx, a, b)
			So(err, ShouldBeNil)
			So(out.Rows(), ShouldEqual, 2)
			So(out.Schema().Names(), ShouldResemble, []string{
				ColPurchaseOrder, ColItem, ColQuantity, ColUnitPrice, ColDeliveryDate,
				ColTotalCost, ColDaysToDelivery, ColCostTrend,
			})

			So(out.Value(0, ColPurchaseOrder), ShouldEqual, "1")
			So(out.Value(0, ColQuantity), ShouldEqual, int64(5))
			So(out.Value(0, ColUnitPrice), ShouldEqual, 15.0)
			So(out.Value(0, ColTotalCost), ShouldEqual, 75.0)
			So(out.Value(0, ColDeliveryDate), ShouldEqual, time.Date(2031, 5, 20, 0, 0, 0, 0, time.UTC))
			So(out.Value(0, ColDaysToDelivery), ShouldEqual, int64(2))

			So(out.Value(1, ColDaysToDelivery), ShouldEqual, int64(-2))
			So(out.Value(1, ColTotalCost), ShouldEqual, 4.0)
			So(out.Value(1, ColCostTrend), ShouldEqual, (75.0+4.0)/2)
		})

		Convey("Row count equals the number of distinct keys", func() {
			var rows []poRow
			keys := map[string]bool{}
			for i := 0; i < 120; i++ {
				po := fmt.Sprintf("PO%d", i%7)
				item := fmt.Sprintf("I%d", i%5)
				keys[po+"/"+item] = true
				rows = append(rows, poRow{po, item, int64(i), 1.5, "2031-06-01"})
			}
			out, err := tr.Procurement(ctx, poFrame(rows...))
			So(err, ShouldBeNil)
			So(out.Rows(), ShouldEqual, len(keys))
			for r := 0; r < out.Rows(); r++ {
				qty, ok := out.Value(r, ColQuantity).(int64)
				So(ok, ShouldBeTrue)
				price, ok := out.Value(r, ColUnitPrice).(float64)
				So(ok, ShouldBeTrue)
				So(out.Value(r, ColTotalCost), ShouldEqual, float64(qty)*price)
			}
		})

		Convey("Running twice yields identical output", func() {
			in := poFrame(
				poRow{"3", "C", int64(2), 7.5, "2031-07-01"},
				poRow{"1", "A", int64(5), 10.0, "2031-05-20"},
				poRow{"1", "A", int64(1), 12.0, "2031-05-21"},
			)
			first, err := tr.Procurement(ctx, in)
			So(err, ShouldBeNil)
			second, err := tr.Procurement(ctx, in)
			So(err, ShouldBeNil)
			So(sameFrame(first, second), ShouldBeTrue)
		})

		Convey("An unparsable delivery date is an error", func() {
			_, err := tr.Procurement(ctx, poFrame(poRow{"1", "A", int64(1), 1.0, "next week"}))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "procurement: to_time")
		})
	})
}

func TestPnL(t *testing.T) {
	ctx := context.Background()

	Convey("Given general ledger balances", t, func() {
		tr := testTransformer(DefaultParams())
		in := glFrame(
			[]any{"REV100", "2024-01-01", "US", 1000.0},
			[]any{"REV100", "2024-01-01", "US", 500.0},
			[]any{"REV100", "2024-01-01", "DE", 300.0},
			[]any{"EXP200", "2024-02-01", "US", -250.0},
			[]any{"EXP200", "2024-03-01", "US", -275.0},
			[]any{"REV100", "2024-04-01", "US", 1800.0},
		)

		out, err := tr.PnL(ctx, in)
		So(err, ShouldBeNil)

		Convey("Balances are summed per account, period and entity", func() {
			So(out.Rows(), ShouldEqual, 5)
			So(out.Value(0, ColAccountCode), ShouldEqual, "EXP200")
			So(out.Value(2, ColEntity), ShouldEqual, "DE")
			So(out.Value(3, ColAmount), ShouldEqual, 1500.0)
		})

		Convey("Accounts are labelled by prefix", func() {
			So(out.Value(0, ColCategory), ShouldEqual, CategoryExpense)
			So(out.Value(3, ColCategory), ShouldEqual, CategoryRevenue)
		})

		Convey("USD amounts use the conversion factor", func() {
			for r := 0; r < out.Rows(); r++ {
				So(out.Value(r, ColAmountUSD), ShouldEqual, out.Value(r, ColAmount).(float64)*0.19)
			}
		})

		Convey("Entities sharing a period share the forecast", func() {
			for r := 0; r < out.Rows(); r++ {
				So(out.Value(r, ColForecastedAmount), ShouldNotBeNil)
			}
			So(out.Value(2, ColForecastedAmount), ShouldEqual, out.Value(3, ColForecastedAmount))
		})
	})

	Convey("A single period cannot be forecast", t, func() {
		tr := testTransformer(DefaultParams())
		_, err := tr.PnL(ctx, glFrame([]any{"REV100", "2024-01-01", "US", 1.0}, []any{"EXP1", "2024-01-01", "US", 2.0}))
		So(errors.Is(err, forecast.ErrInsufficientData), ShouldBeTrue)
	})
}

func TestMargin(t *testing.T) {
	ctx := context.Background()

	Convey("Given sales lines", t, func() {
		tr := testTransformer(DefaultParams())

		Convey("A negative margin is a loss", func() {
			out, err := tr.Margin(ctx, salesFrame([]any{"X", -50.0, 10.0, 5.0, int64(20)}))
			So(err, ShouldBeNil)
			So(out.Value(0, ColProfitability), ShouldEqual, ProfitLoss)
			So(out.Value(0, ColMarginPercentage), ShouldEqual, -25.0)
		})

		Convey("Buckets are closed on the right", func() {
			out, err := tr.Margin(ctx, salesFrame(
				[]any{"A", 0.0, 1.0, 1.0, int64(1)},
				[]any{"B", 400.0, 1.0, 1.0, int64(1)},
				[]any{"B", 600.0, 1.0, 1.0, int64(1)},
				[]any{"C", 1000.5, 1.0, 1.0, int64(1)},
			))
			So(err, ShouldBeNil)
			So(out.Rows(), ShouldEqual, 3)
			So(out.Value(0, ColProfitability), ShouldEqual, ProfitLoss)
			So(out.Value(1, ColMargin), ShouldEqual, 1000.0)
			So(out.Value(1, ColQuantitySold), ShouldEqual, int64(2))
			So(out.Value(1, ColProfitability), ShouldEqual, ProfitLow)
			So(out.Value(2, ColProfitability), ShouldEqual, ProfitHigh)
		})

		Convey("Breakpoints come from the parameters", func() {
			p := DefaultParams()
			p.MarginHigh = 100
			out, err := testTransformer(p).Margin(ctx, salesFrame([]any{"A", 150.0, 1.0, 1.0, int64(1)}))
			So(err, ShouldBeNil)
			So(out.Value(0, ColProfitability), ShouldEqual, ProfitHigh)
		})
	})
}
