package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Repository is the storage the service writes through.
type Repository interface {
	Append(ctx context.Context, userID int64, d core.DraftItem) (core.Transaction, error)
	Close() error
}

// Publisher announces stored transactions.
type Publisher interface {
	PublishTransactionCreated(ctx context.Context, id, userID int64) error
	Close() error
}

// TransactionService saves transactions locally and then publishes an event.
type TransactionService struct {
	storage   Repository
	publisher Publisher
}

var _ Repository = (*storage.SQLiteRepository)(nil)

// NewTransactionService accepts a nil publisher when messaging is disabled.
func NewTransactionService(storage Repository, publisher Publisher) *TransactionService {
	return &TransactionService{
		storage:   storage,
		publisher: publisher,
	}
}

// CreateTransaction stores the draft first. A failed publish is logged and
// does not fail the call since the record is already saved.
func (s *TransactionService) CreateTransaction(ctx context.Context, userID int64, d core.DraftItem) (core.Transaction, error) {
	t, err := s.storage.Append(ctx, userID, d)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	id, err := strconv.ParseInt(t.ID.String(), 10, 64)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to parse transaction ID", "ref", t.ID, "error", err)
		return t, nil
	}

	if err := s.publishCreated(ctx, id, userID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction created message",
			"id", id, "error", err)
	}
	return t, nil
}

func (s *TransactionService) publishCreated(ctx context.Context, id, userID int64) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping transaction event")
		return nil
	}
	return s.publisher.PublishTransactionCreated(ctx, id, userID)
}

// Close closes storage and the publisher.
func (s *TransactionService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}
