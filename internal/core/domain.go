package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date wire format used everywhere.
const DateLayout = "2006-01-02"

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// Uncategorized labels records whose category is blank.
const Uncategorized = "Uncategorized"

type (
	// TxType is the closed transaction kind. Only Income and Expense are valid.
	TxType string

	// ID is an opaque record identity. Backends may send it as a number or a string.
	ID string

	// Date is a calendar date at UTC midnight. The zero value is an invalid (absent) date.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          ID              `json:"id"`
		Type        TxType          `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Date        Date            `json:"date"`
		Description string          `json:"description,omitempty"`
	}

	// DraftItem is a transaction awaiting submission; it has no identity yet.
	DraftItem struct {
		Type        TxType
		Amount      decimal.Decimal
		Category    string
		Date        Date
		Description string
	}

	User struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrNetwork         = errors.New("network error")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyCategory = errors.New("empty category")
)

// ValidationError reports a field that blocks submission.
// errors.Is(err, ErrValidation) holds for every ValidationError.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ParseTxType accepts exactly "income" or "expense".
func ParseTxType(s string) (TxType, error) {
	switch t := TxType(s); t {
	case Income, Expense:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// NormalizeTxType is the lenient ingestion rule for loosely typed input:
// anything other than exactly "income" becomes Expense.
func NormalizeTxType(s string) TxType {
	if TxType(s) == Income {
		return Income
	}
	return Expense
}

func (t TxType) Valid() bool { return t == Income || t == Expense }

func (t TxType) String() string { return string(t) }

func (t *TxType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidType, b)
	}
	parsed, err := ParseTxType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current local calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses the first ten characters of s as YYYY-MM-DD, so full
// timestamps are truncated to their day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Valid reports whether d holds a real calendar date.
func (d Date) Valid() bool { return !d.IsZero() }

func (d Date) String() string {
	if !d.Valid() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey returns YYYY-MM.
func (d Date) MonthKey() string {
	if !d.Valid() {
		return ""
	}
	return d.Format("2006-01")
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// AddDays shifts d by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON is lenient: a malformed or missing date decodes to the
// invalid zero Date instead of failing the whole record.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

// DisplayCategory returns the category or Uncategorized when blank.
func (t Transaction) DisplayCategory() string {
	return categoryLabel(t.Category)
}

// Signed returns the amount with the sign implied by the type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if t.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	return nil
}

// Validate checks the record invariants every store enforces.
func (d DraftItem) Validate() error {
	if !d.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if d.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if !d.Date.Valid() {
		return &ValidationError{Field: "date", Err: ErrInvalidDate}
	}
	return nil
}

// ValidateEntry is the stricter check for manual entry: a positive amount
// and a category are required.
func (d DraftItem) ValidateEntry() error {
	if !d.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if strings.TrimSpace(d.Category) == "" {
		return &ValidationError{Field: "category", Err: ErrEmptyCategory}
	}
	return d.Validate()
}

// Transaction gives the draft an identity.
func (d DraftItem) Transaction(id ID) Transaction {
	return Transaction{
		ID:          id,
		Type:        d.Type,
		Amount:      d.Amount,
		Category:    d.Category,
		Date:        d.Date,
		Description: d.Description,
	}
}

// MarshalJSON emits the create-transaction payload with a numeric amount.
func (d DraftItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date        string      `json:"date"`
		Type        TxType      `json:"type"`
		Category    string      `json:"category"`
		Description string      `json:"description"`
		Amount      json.Number `json:"amount"`
	}{
		Date:        d.Date.String(),
		Type:        d.Type,
		Category:    d.Category,
		Description: d.Description,
		Amount:      json.Number(d.Amount.StringFixed(2)),
	})
}

// Initials returns up to two upper-cased initials from the name, falling
// back to the email and then to "U".
func (u User) Initials() string {
	src := strings.TrimSpace(u.Name)
	if src == "" {
		src = strings.TrimSpace(u.Email)
	}
	if src == "" {
		return "U"
	}
	var b strings.Builder
	for _, word := range strings.Fields(src) {
		r := []rune(word)
		b.WriteRune(r[0])
		if len([]rune(b.String())) == 2 {
			break
		}
	}
	return strings.ToUpper(b.String())
}

// DisplayName prefers the name over the email.
func (u User) DisplayName() string {
	if n := strings.TrimSpace(u.Name); n != "" {
		return n
	}
	return u.Email
}

func categoryLabel(c string) string {
	if strings.TrimSpace(c) == "" {
		return Uncategorized
	}
	return c
}
