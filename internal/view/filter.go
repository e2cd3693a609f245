// Package view holds the pure transaction view pipeline: filtering,
// pagination and aggregation over an in-memory record slice.
package view

import (
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// TypeAll disables the type constraint.
const TypeAll = "all"

// Criteria selects records. The zero value matches everything.
type Criteria struct {
	// Type is "all", "income" or "expense". Empty means all.
	Type string
	// From and To are inclusive calendar-day bounds; nil means unbounded.
	// A non-nil bound holding the zero Date came from unparsable input
	// and matches nothing.
	From, To *core.Date
	// Query is a case-insensitive substring over description and category.
	Query string
	// Category requires an exact category match.
	Category string
}

// ParseCriteria builds Criteria from raw form values. Empty strings leave a
// bound absent; unparsable ones become a bound that never matches.
func ParseCriteria(txType, from, to string) Criteria {
	return Criteria{
		Type: txType,
		From: parseBound(from),
		To:   parseBound(to),
	}
}

func parseBound(s string) *core.Date {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return &core.Date{}
	}
	return &d
}

// Filter returns the records matching c in their original relative order.
// The input is never modified.
func Filter(records []core.Transaction, c Criteria) []core.Transaction {
	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		if c.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Match reports whether a single record satisfies the criteria.
func (c Criteria) Match(r core.Transaction) bool {
	if c.Type != "" && c.Type != TypeAll && string(r.Type) != c.Type {
		return false
	}
	if c.From != nil && !onOrAfter(r.Date, *c.From) {
		return false
	}
	if c.To != nil && !onOrAfter(*c.To, r.Date) {
		return false
	}
	if c.Category != "" && r.Category != c.Category {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(c.Query)); q != "" {
		if !strings.Contains(strings.ToLower(r.Description), q) &&
			!strings.Contains(strings.ToLower(r.Category), q) {
			return false
		}
	}
	return true
}

// onOrAfter compares calendar days; an invalid date on either side fails.
func onOrAfter(a, b core.Date) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return !a.Before(b.Time)
}

// CriteriaFromQuery converts a backend query into filter criteria.
func CriteriaFromQuery(q ports.Query) Criteria {
	c := ParseCriteria(q.Type, q.Start, q.End)
	c.Query = q.Q
	c.Category = q.Category
	return c
}
