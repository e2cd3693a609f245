package log

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
)

// Events writes the records that have a fixed shape: request completion,
// created transactions and import commits.
type Events struct {
	logger *Logger
}

func NewEvents(logger *Logger) *Events {
	return &Events{logger: logger}
}

// HTTPDone logs a finished request. 4xx is a warning, 5xx an error.
func (e *Events) HTTPDone(ctx context.Context, r *http.Request, status int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	f := Fields{
		FieldComponent:  ComponentHTTP,
		FieldMethod:     r.Method,
		FieldPath:       r.URL.Path,
		FieldStatusCode: status,
		FieldDuration:   durationMs,
		FieldClientIP:   clientIP,
	}
	if r.URL.RawQuery != "" {
		f[FieldQuery] = r.URL.RawQuery
	}
	if ua := r.UserAgent(); ua != "" {
		f[FieldUserAgent] = ua
	}
	e.logger.Logger.Log(ctx, level, "HTTP request completed", f.Args()...)
}

// TransactionCreated logs a stored transaction.
func (e *Events) TransactionCreated(ctx context.Context, id, txType string, amount decimal.Decimal, category string) {
	f := Transaction(id, txType, amount, category)
	f[FieldComponent] = ComponentHTTP
	f[FieldOperation] = OpCreate
	e.logger.Logger.InfoContext(ctx, "Transaction created", f.Args()...)
}

// ImportCommitted logs how far a bulk import got.
func (e *Events) ImportCommitted(ctx context.Context, submitted, pending int, err error) {
	f := Fields{
		FieldComponent: ComponentStaging,
		FieldOperation: OpCommit,
		FieldSubmitted: submitted,
		FieldPending:   pending,
	}
	if err != nil {
		f[FieldError] = err.Error()
		e.logger.Logger.WarnContext(ctx, "Import stopped early", f.Args()...)
		return
	}
	e.logger.Logger.InfoContext(ctx, "Import committed", f.Args()...)
}
