// Package staging holds parsed import rows for review before they are
// submitted as transactions.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

var (
	ErrNothingToImport = errors.New("nothing to import")
	ErrIndexOutOfRange = errors.New("staged item index out of range")
	ErrUnknownField    = errors.New("unknown staged item field")
)

// Editable fields.
const (
	FieldDate        = "date"
	FieldType        = "type"
	FieldCategory    = "category"
	FieldDescription = "description"
	FieldAmount      = "amount"
)

// CommitError reports a bulk commit that stopped part way. Items already
// submitted stay submitted.
type CommitError struct {
	Submitted int
	Pending   int
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("imported %d of %d: %v", e.Submitted, e.Submitted+e.Pending, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Area is the staging buffer of one session. Safe for concurrent use.
type Area struct {
	mu     sync.Mutex
	items  []core.DraftItem
	source string
	today  func() core.Date
	logger *slog.Logger
}

// Option configures an Area.
type Option func(*Area)

// WithClock overrides the date used for rows without a valid date.
func WithClock(today func() core.Date) Option {
	return func(a *Area) { a.today = today }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Area) { a.logger = l }
}

func New(opts ...Option) *Area {
	a := &Area{today: core.Today, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Stage replaces the buffer with the normalized parsed rows and returns the
// number of staged rows. A row with no usable field still stages as a
// zero-amount expense dated today.
func (a *Area) Stage(parsed []ports.ParsedItem, source string) int {
	today := a.today()
	items := make([]core.DraftItem, 0, len(parsed))
	for _, p := range parsed {
		items = append(items, Normalize(p, today))
	}

	a.mu.Lock()
	a.items = items
	a.source = source
	a.mu.Unlock()

	a.logger.Info("Staged import rows",
		"source", source,
		"parsed", len(parsed),
		"staged", len(items))
	return len(items)
}

// Edit changes one field of a staged row. Amounts are coerced leniently.
func (a *Area) Edit(index int, field, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.items) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	it := &a.items[index]
	switch field {
	case FieldDate:
		it.Date = normalizeDate(value, a.today())
	case FieldType:
		it.Type = core.NormalizeTxType(value)
	case FieldCategory:
		it.Category = value
	case FieldDescription:
		it.Description = value
	case FieldAmount:
		it.Amount = core.CoerceAmount(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Delete removes one staged row.
func (a *Area) Delete(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.items) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	a.items = append(a.items[:index], a.items[index+1:]...)
	return nil
}

// Items returns a copy of the staged rows.
func (a *Area) Items() []core.DraftItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.DraftItem, len(a.items))
	copy(out, a.items)
	return out
}

func (a *Area) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Source names the files the staged rows came from.
func (a *Area) Source() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.source
}

func (a *Area) Reset() {
	a.mu.Lock()
	a.items = nil
	a.source = ""
	a.mu.Unlock()
}

// RunningTotal is the sum of staged incomes minus staged expenses.
func (a *Area) RunningTotal() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := decimal.Zero
	for _, it := range a.items {
		if it.Type == core.Income {
			total = total.Add(it.Amount)
		} else {
			total = total.Sub(it.Amount)
		}
	}
	return total
}

// Commit submits every staged row with a positive amount, one at a time
// in order. It stops at the first failure and returns a *CommitError;
// nothing already submitted is rolled back, but submitted rows leave the
// area so a retry only sends the pending ones. On success the area is
// cleared.
// The area stays locked for the duration so edits cannot interleave.
func (a *Area) Commit(ctx context.Context, creator ports.TransactionCreator) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	today := a.today()
	var (
		ready []core.DraftItem
		at    []int
	)
	for i, it := range a.items {
		it = renormalize(it, today)
		if it.Amount.IsPositive() {
			ready = append(ready, it)
			at = append(at, i)
		}
	}
	if len(ready) == 0 {
		return 0, ErrNothingToImport
	}

	for i, it := range ready {
		err := ctx.Err()
		if err == nil {
			_, err = creator.CreateTransaction(ctx, it)
		}
		if err != nil {
			a.logger.Warn("Import commit stopped",
				"submitted", i,
				"pending", len(ready)-i,
				"error", err)
			a.dropRows(at[:i])
			return i, &CommitError{Submitted: i, Pending: len(ready) - i, Err: err}
		}
	}

	a.logger.Info("Committed import", "source", a.source, "count", len(ready))
	a.items = nil
	a.source = ""
	return len(ready), nil
}

// dropRows removes the rows at the given ascending indexes. Callers hold mu.
func (a *Area) dropRows(idx []int) {
	if len(idx) == 0 {
		return
	}
	kept := a.items[:0:0]
	next := 0
	for i, it := range a.items {
		if next < len(idx) && idx[next] == i {
			next++
			continue
		}
		kept = append(kept, it)
	}
	a.items = kept
}

// Normalize turns a loosely typed parsed row into a draft. A date is kept
// when its first ten characters parse, otherwise today is used. Only the
// exact type "income" is income. Missing or malformed amounts become zero.
func Normalize(p ports.ParsedItem, today core.Date) core.DraftItem {
	return core.DraftItem{
		Date:        normalizeDate(rawString(p.Date), today),
		Type:        core.NormalizeTxType(rawString(p.Type)),
		Amount:      rawAmount(p.Amount),
		Category:    rawString(p.Category),
		Description: rawString(p.Description),
	}
}

func renormalize(d core.DraftItem, today core.Date) core.DraftItem {
	if !d.Date.Valid() {
		d.Date = today
	}
	if !d.Type.Valid() {
		d.Type = core.Expense
	}
	if d.Amount.IsNegative() {
		d.Amount = decimal.Zero
	}
	d.Amount = d.Amount.Round(2)
	return d
}

func normalizeDate(s string, today core.Date) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		return today
	}
	return d
}

// rawString decodes a JSON string; anything else yields "".
func rawString(raw json.RawMessage) string {
	if ports.IsNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// rawAmount accepts a JSON number, exponent form included, or a numeric
// string.
func rawAmount(raw json.RawMessage) decimal.Decimal {
	if ports.IsNull(raw) {
		return decimal.Zero
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if d, err := decimal.NewFromString(n.String()); err == nil {
			if d.IsNegative() {
				return decimal.Zero
			}
			return d.Round(2)
		}
		return core.CoerceAmount(n.String())
	}
	return core.CoerceAmount(strings.TrimSpace(rawString(raw)))
}
