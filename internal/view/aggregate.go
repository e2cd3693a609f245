package view

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Summarize totals income and expense. Callers decide whether to pass the
// filtered or the unfiltered set.
func Summarize(records []core.Transaction) core.Summary {
	var s core.Summary
	for _, r := range records {
		switch r.Type {
		case core.Income:
			s.Income = s.Income.Add(r.Amount)
		case core.Expense:
			s.Expense = s.Expense.Add(r.Amount)
		}
	}
	s.Net = s.Income.Sub(s.Expense)
	return s
}

// ByCategory sums expenses per literal category in first-occurrence order.
// Keys are case-sensitive; blank categories fold into Uncategorized.
func ByCategory(records []core.Transaction) []core.CategoryAmount {
	idx := make(map[string]int)
	var out []core.CategoryAmount
	for _, r := range records {
		if r.Type != core.Expense {
			continue
		}
		name := r.DisplayCategory()
		i, ok := idx[name]
		if !ok {
			i = len(out)
			idx[name] = i
			out = append(out, core.CategoryAmount{Name: name})
		}
		out[i].Amount = out[i].Amount.Add(r.Amount)
	}
	return out
}

// ByTimeBucket groups records per day or month, sorted by bucket start.
// Records without a valid date are skipped.
func ByTimeBucket(records []core.Transaction, g core.Granularity) []core.Bucket {
	idx := make(map[string]int)
	var out []core.Bucket
	for _, r := range records {
		if !r.Date.Valid() {
			continue
		}
		key, start := r.Date.String(), r.Date
		if g == core.Month {
			key, start = r.Date.MonthKey(), r.Date.MonthStart()
		}
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, core.Bucket{Key: key, Start: start})
		}
		switch r.Type {
		case core.Income:
			out[i].Income = out[i].Income.Add(r.Amount)
		case core.Expense:
			out[i].Expense = out[i].Expense.Add(r.Amount)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Start.Before(out[b].Start.Time) })
	return out
}

// MonthOverMonth summarizes the month containing asOf and compares it with
// the previous calendar month.
func MonthOverMonth(records []core.Transaction, asOf core.Date) core.KPIs {
	cur := asOf.MonthStart()
	prev := cur.AddDate(0, -1, 0)
	var now, before core.Summary
	for _, r := range records {
		if !r.Date.Valid() {
			continue
		}
		m := r.Date.MonthStart()
		if m.Equal(cur.Time) {
			now = addTo(now, r)
		} else if m.Equal(prev) {
			before = addTo(before, r)
		}
	}
	return core.KPIs{
		Income:        now.Income,
		Expense:       now.Expense,
		Net:           now.Income.Sub(now.Expense),
		MoMIncomePct:  PercentChange(now.Income, before.Income),
		MoMExpensePct: PercentChange(now.Expense, before.Expense),
	}
}

func addTo(s core.Summary, r core.Transaction) core.Summary {
	switch r.Type {
	case core.Income:
		s.Income = s.Income.Add(r.Amount)
	case core.Expense:
		s.Expense = s.Expense.Add(r.Amount)
	}
	return s
}

// PercentChange is (cur-prev)/prev*100 rounded to one decimal, or 0 when
// prev is zero.
func PercentChange(cur, prev decimal.Decimal) float64 {
	if prev.IsZero() {
		return 0
	}
	pct := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(1)
	return pct.InexactFloat64()
}

// BudgetUsage is expense as a percentage of budget, clamped to [0, 100].
func BudgetUsage(expense, budget decimal.Decimal) float64 {
	if !budget.IsPositive() {
		return 0
	}
	pct := expense.Div(budget).Mul(decimal.NewFromInt(100)).InexactFloat64()
	return math.Max(0, math.Min(100, pct))
}
