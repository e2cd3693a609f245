package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	schema  uint
}

// Account is a stored user with its credentials.
type Account struct {
	ID           int64
	User         core.User
	PasswordHash string
}

// StoredTransaction is a record together with its owner.
type StoredTransaction struct {
	UserID      int64
	Transaction core.Transaction
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		schema:  schema,
	}, nil
}

// SchemaVersion is the migration version the database was opened at.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schema
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateAccount stores a new user. Email must already be normalized.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, name, email, passwordHash string) (Account, error) {
	u, err := r.queries.CreateUser(ctx, CreateUserParams{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return Account{}, ErrEmailTaken
		}
		return Account{}, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User saved to SQLite", "user_id", u.ID)
	return toAccount(u), nil
}

// AccountByEmail returns ErrNotFound when no user has that email.
func (r *SQLiteRepository) AccountByEmail(ctx context.Context, email string) (Account, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get user by email: %w", err)
	}
	return toAccount(u), nil
}

// Append stores a draft for userID and returns the created record.
func (r *SQLiteRepository) Append(ctx context.Context, userID int64, d core.DraftItem) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		UserID:      userID,
		TxType:      string(d.Type),
		AmountCents: toCents(d.Amount),
		Category:    d.Category,
		TxDate:      d.Date.String(),
		Description: d.Description,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"user_id", userID,
		"transaction_type", row.TxType,
		"amount_cents", row.AmountCents,
		"category", row.Category,
		"date", row.TxDate)

	return toTransaction(row), nil
}

// ListTransactions returns userID's records in insertion order.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = toTransaction(row)
	}
	return out, nil
}

// GetTransaction retrieves a single record by ID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (StoredTransaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredTransaction{}, ErrNotFound
	}
	if err != nil {
		return StoredTransaction{}, fmt.Errorf("get transaction by id: %w", err)
	}
	return StoredTransaction{UserID: row.UserID, Transaction: toTransaction(row)}, nil
}

// CountTransactions returns how many records userID owns.
func (r *SQLiteRepository) CountTransactions(ctx context.Context, userID int64) (int64, error) {
	n, err := r.queries.CountTransactionsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func toAccount(u User) Account {
	return Account{
		ID:           u.ID,
		User:         core.User{Name: u.Name, Email: u.Email},
		PasswordHash: u.PasswordHash,
	}
}

// toTransaction maps a row; a corrupt date or type surfaces as the invalid
// zero value and is filtered like any other bad record.
func toTransaction(row Transaction) core.Transaction {
	date, _ := core.ParseDate(row.TxDate)
	return core.Transaction{
		ID:          core.ID(strconv.FormatInt(row.ID, 10)),
		Type:        core.TxType(row.TxType),
		Amount:      decimal.New(row.AmountCents, -2),
		Category:    row.Category,
		Date:        date,
		Description: row.Description,
	}
}

func toCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}
