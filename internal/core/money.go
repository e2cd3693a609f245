package core

import (
	"strings"
	"unicode"

	"github.com/bojanz/currency"
	"github.com/shopspring/decimal"
)

// ParseAmount parses a non-negative decimal amount and rounds it to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents and anything that is not plain digits are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil (half away from zero)
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	if parts[0] == "" && (len(parts) == 1 || parts[1] == "") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		parts[0] = "0"
	}
	s = parts[0]
	if len(parts) == 2 && parts[1] != "" {
		s += "." + parts[1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// CoerceAmount is the lenient form used while editing drafts: blank,
// malformed or negative input becomes zero.
func CoerceAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var inrFormatter = func() *currency.Formatter {
	f := currency.NewFormatter(currency.NewLocale("en-IN"))
	f.MaxDigits = 2
	return f
}()

// FormatINR renders an amount as rupees with Indian digit grouping and two
// decimals, e.g. ₹12,34,567.80.
func FormatINR(d decimal.Decimal) string {
	s := d.Round(2).StringFixed(2)
	amount, err := currency.NewAmount(s, "INR")
	if err != nil {
		return "₹" + s
	}
	return inrFormatter.Format(amount)
}
