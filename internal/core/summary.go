package core

import "github.com/shopspring/decimal"

// Granularity selects the time bucket size for chart series.
type Granularity string

const (
	Day   Granularity = "day"
	Month Granularity = "month"
)

// Summary holds income and expense totals over a set of records.
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// KPIs is the current-month summary with month-over-month deltas in percent.
type KPIs struct {
	Income        decimal.Decimal `json:"income"`
	Expense       decimal.Decimal `json:"expense"`
	Net           decimal.Decimal `json:"net"`
	MoMIncomePct  float64         `json:"mom_income_pct"`
	MoMExpensePct float64         `json:"mom_expense_pct"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// Bucket is one point of a time series: totals for a day or a month.
type Bucket struct {
	Key     string
	Start   Date
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Net returns income minus expense for the bucket.
func (b Bucket) Net() decimal.Decimal { return b.Income.Sub(b.Expense) }
