package view

import (
	"strings"

	"fintrack/internal/core"
)

const (
	RangeAll = "ALL"
	Range7D  = "7D"
	RangeMTD = "MTD"
)

// DefaultRange is used when no quick range is selected.
const DefaultRange = RangeMTD

var classRules = []struct {
	needle, class string
}{
	{"food", "food"},
	{"transport", "transport"},
	{"entertain", "entertainment"},
	{"salary", "salary"},
	{"shop", "shopping"},
}

// Classify maps a category to a badge class. Rules are checked in order
// against the lower-cased category; unmatched categories are "misc".
func Classify(category string) string {
	c := strings.ToLower(category)
	for _, rule := range classRules {
		if strings.Contains(c, rule.needle) {
			return rule.class
		}
	}
	return "misc"
}

// QuickRange resolves a named range relative to today. ALL has no bounds,
// 7D covers the last seven days including today and anything else is
// month to date.
func QuickRange(name string, today core.Date) (from, to *core.Date) {
	switch strings.ToUpper(name) {
	case RangeAll:
		return nil, nil
	case Range7D:
		f := today.AddDays(-6)
		return &f, &today
	default:
		f := today.MonthStart()
		return &f, &today
	}
}

// NormalizeRange maps unknown names to the default.
func NormalizeRange(name string) string {
	switch n := strings.ToUpper(name); n {
	case RangeAll, Range7D, RangeMTD:
		return n
	default:
		return DefaultRange
	}
}
