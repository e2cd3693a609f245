// Package worker consumes transaction events and tracks monthly budget usage.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/view"
)

// Thresholds are the budget usage percentages that raise an alert.
var Thresholds = []float64{80, 100}

// alertTTL outlives any calendar month so an alert is raised once per month.
const alertTTL = 32 * 24 * time.Hour

// Store is the read side of the SQLite repository the worker needs.
type Store interface {
	GetTransaction(ctx context.Context, id int64) (storage.StoredTransaction, error)
	ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error)
}

var _ Store = (*storage.SQLiteRepository)(nil)

// Alert is a crossed budget threshold for one user and month.
type Alert struct {
	UserID    int64
	Month     string
	Threshold float64
	Usage     float64
	Expense   decimal.Decimal
}

// BudgetWorker recomputes a user's month-to-date expense whenever an
// expense is stored and warns when it crosses a budget threshold.
type BudgetWorker struct {
	storage Store
	budget  decimal.Decimal
	alerted *cache.LRUCache[struct{}]
	logger  *applog.Logger
}

func NewBudgetWorker(storage Store, budget decimal.Decimal, logger *applog.Logger) *BudgetWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &BudgetWorker{
		storage: storage,
		budget:  budget,
		alerted: cache.NewLRUCache[struct{}](10000, alertTTL),
		logger:  logger.WithComponent(applog.ComponentWorker),
	}
}

// AlertCache exposes the dedupe cache so callers can register it for sweeping.
func (w *BudgetWorker) AlertCache() *cache.LRUCache[struct{}] {
	return w.alerted
}

// HandleTransactionCreated processes one event. A transaction that no
// longer exists is skipped; storage errors are returned so the message is
// requeued.
func (w *BudgetWorker) HandleTransactionCreated(ctx context.Context, msg *amqp.TransactionCreatedMessage) error {
	_, err := w.Check(ctx, msg.ID)
	return err
}

// Check evaluates the budget for the month of transaction id and returns
// the alerts raised by this call.
func (w *BudgetWorker) Check(ctx context.Context, id int64) ([]Alert, error) {
	stored, err := w.storage.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Transaction not found, skipping", applog.FieldTransactionID, id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	t := stored.Transaction
	if t.Type != core.Expense || !t.Date.Valid() || !w.budget.IsPositive() {
		return nil, nil
	}

	records, err := w.storage.ListTransactions(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	month := view.MonthOverMonth(records, t.Date)
	usage := view.BudgetUsage(month.Expense, w.budget)
	monthKey := t.Date.MonthKey()

	w.logger.DebugContext(ctx, "Budget usage updated",
		"user_id", stored.UserID,
		applog.FieldMonth, monthKey,
		"usage_pct", usage)

	var alerts []Alert
	for _, th := range Thresholds {
		if usage < th {
			continue
		}
		key := fmt.Sprintf("%d:%s:%g", stored.UserID, monthKey, th)
		if _, seen := w.alerted.Get(key); seen {
			continue
		}
		w.alerted.Set(key, struct{}{})
		a := Alert{UserID: stored.UserID, Month: monthKey, Threshold: th, Usage: usage, Expense: month.Expense}
		alerts = append(alerts, a)
		w.logger.WarnContext(ctx, "Monthly budget threshold crossed",
			"user_id", a.UserID,
			applog.FieldMonth, a.Month,
			"threshold_pct", a.Threshold,
			"expense", core.FormatINR(a.Expense),
			"budget", core.FormatINR(w.budget))
	}
	return alerts, nil
}
