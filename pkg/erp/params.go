// Package erp derives the procurement, profit-and-loss and product margin
// datasets from extracted ERP tables.
package erp

import (
	"github.com/wdm0006/erpflow/pkg/forecast"
)

// Source and derived column names.
const (
	ColPurchaseOrder  = "PurchaseOrder"
	ColItem           = "Item"
	ColQuantity       = "Quantity"
	ColUnitPrice      = "UnitPrice"
	ColDeliveryDate   = "DeliveryDate"
	ColTotalCost      = "TotalCost"
	ColDaysToDelivery = "DaysToDelivery"
	ColCostTrend      = "CostTrend"

	ColAccountCode      = "AccountCode"
	ColPeriod           = "Period"
	ColEntity           = "Entity"
	ColAmount           = "Amount"
	ColCategory         = "Category"
	ColAmountUSD        = "AmountUSD"
	ColForecastedAmount = "ForecastedAmount"

	ColItemNumber       = "ItemNumber"
	ColMargin           = "Margin"
	ColUnitCost         = "UnitCost"
	ColQuantitySold     = "QuantitySold"
	ColMarginPercentage = "MarginPercentage"
	ColProfitability    = "Profitability"
)

// Category and profitability labels.
const (
	CategoryRevenue = "Revenue"
	CategoryExpense = "Expense"

	ProfitLoss = "Loss"
	ProfitLow  = "Low"
	ProfitHigh = "High"
)

// Params holds the business constants used by the transforms.
type Params struct {
	CurrencyFactor  float64
	RevenuePrefix   string
	RollingWindow   int
	ForecastHorizon int
	MarginLow       float64
	MarginHigh      float64
	DateLayouts     []string
	Forecast        forecast.Options
}

// DefaultParams returns the standard reporting constants.
func DefaultParams() Params {
	return Params{
		CurrencyFactor:  0.19,
		RevenuePrefix:   "REV",
		RollingWindow:   30,
		ForecastHorizon: 90,
		MarginLow:       0,
		MarginHigh:      1000,
	}
}
