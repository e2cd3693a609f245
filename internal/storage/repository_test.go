package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "fintrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAccounts(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	a, err := repo.CreateAccount(ctx, "Ada", "ada@example.com", "hash")
	if err != nil || a.ID == 0 || a.User.Email != "ada@example.com" {
		t.Fatalf("create account: %+v %v", a, err)
	}
	if _, err := repo.CreateAccount(ctx, "Ada 2", "ada@example.com", "hash"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	got, err := repo.AccountByEmail(ctx, "ada@example.com")
	if err != nil || got.ID != a.ID || got.PasswordHash != "hash" {
		t.Fatalf("lookup: %+v %v", got, err)
	}
	if _, err := repo.AccountByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactions(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	a, err := repo.CreateAccount(ctx, "Ada", "ada@example.com", "hash")
	if err != nil {
		t.Fatal(err)
	}

	drafts := []core.DraftItem{
		{Type: core.Income, Amount: decimal.RequireFromString("5000"), Category: "Salary", Date: core.NewDate(2025, 1, 1)},
		{Type: core.Expense, Amount: decimal.RequireFromString("12.345"), Category: "Food", Date: core.NewDate(2025, 1, 2), Description: "lunch"},
	}
	var created []core.Transaction
	for _, d := range drafts {
		tx, err := repo.Append(ctx, a.ID, d)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		created = append(created, tx)
	}
	if !created[1].Amount.Equal(decimal.RequireFromString("12.35")) {
		t.Fatalf("amount not rounded to cents: %s", created[1].Amount)
	}
	if _, err := repo.Append(ctx, a.ID, core.DraftItem{Type: "bogus", Date: core.NewDate(2025, 1, 1)}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	list, err := repo.ListTransactions(ctx, a.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %d %v", len(list), err)
	}
	if list[0].ID != created[0].ID || list[1].Description != "lunch" || !list[1].Date.Equal(core.NewDate(2025, 1, 2).Time) {
		t.Fatalf("list order or fields: %+v", list)
	}
	if n, _ := repo.CountTransactions(ctx, a.ID); n != 2 {
		t.Fatalf("count: %d", n)
	}

	id, err := strconv.ParseInt(created[0].ID.String(), 10, 64)
	if err != nil {
		t.Fatal(err)
	}
	st, err := repo.GetTransaction(ctx, id)
	if err != nil || st.UserID != a.ID || st.Transaction.Type != core.Income {
		t.Fatalf("get: %+v %v", st, err)
	}
	if _, err := repo.GetTransaction(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")

	v, err := RunMigrations(path)
	if err != nil || v != 2 {
		t.Fatalf("first run: version %d err %v", v, err)
	}
	if v, err := RunMigrations(path); err != nil || v != 2 {
		t.Fatalf("second run should be a no-op: version %d err %v", v, err)
	}

	if err := ResetSchema(path); err != nil {
		t.Fatalf("reset: %v", err)
	}
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen after reset: %v", err)
	}
	defer repo.Close()
	if repo.SchemaVersion() != 2 {
		t.Fatalf("schema version %d", repo.SchemaVersion())
	}
}
