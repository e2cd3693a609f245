package view

import (
	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// Execute answers a paged query over an in-memory record set the way a
// backend would: filter, paginate, and attach KPIs for the month of asOf
// over all records plus totals over the filtered set.
func Execute(records []core.Transaction, q ports.Query, asOf core.Date) ports.PageResult {
	filtered := Filter(records, CriteriaFromQuery(q))
	p := Paginate(filtered, q.PageSize, q.Page)
	kpis := MonthOverMonth(records, asOf)
	totals := Summarize(filtered)
	return ports.PageResult{
		Items:  p.Items,
		Total:  p.Total,
		Pages:  p.TotalPages,
		Page:   p.EffectivePage,
		KPIs:   &kpis,
		Totals: &totals,
	}
}
