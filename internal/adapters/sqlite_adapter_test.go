package adapters

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func newAdapter(t *testing.T) *SQLiteAdapter {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatal(err)
	}
	svc := services.NewTransactionService(repo, nil)
	t.Cleanup(func() { svc.Close() })
	return NewSQLiteAdapter(repo, svc,
		WithHashCost(bcrypt.MinCost),
		WithClock(func() core.Date { return core.NewDate(2025, 3, 10) }))
}

func TestAdapterOptions(t *testing.T) {
	a := newAdapter(t)
	if !a.today().Equal(core.NewDate(2025, 3, 10).Time) {
		t.Fatalf("clock option not applied: %v", a.today())
	}

	ctx := context.Background()
	if _, err := a.OpenSession().Signup(ctx, "Grace", "grace@example.com", "compiler"); err != nil {
		t.Fatal(err)
	}
	acct, err := a.storage.AccountByEmail(ctx, "grace@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if cost, err := bcrypt.Cost([]byte(acct.PasswordHash)); err != nil || cost != bcrypt.MinCost {
		t.Fatalf("hash cost = %d, %v", cost, err)
	}
}

func TestSQLiteSessionFlow(t *testing.T) {
	a := newAdapter(t)
	ctx := context.Background()
	b := a.OpenSession()

	if _, err := b.QueryTransactions(ctx, ports.Query{}); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := b.Signup(ctx, "Ada", "Ada@Example.com", "analytical"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := a.OpenSession().Signup(ctx, "Ada", "ada@example.com", "analytical"); !errors.Is(err, auth.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}

	for i, amt := range []string{"100", "250.75"} {
		d := core.DraftItem{Type: core.Expense, Amount: decimal.RequireFromString(amt), Category: "Food", Date: core.NewDate(2025, 3, i+1)}
		if _, err := b.CreateTransaction(ctx, d); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	other := a.OpenSession()
	if _, err := other.Login(ctx, "ada@example.com", "nope-nope"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := other.Login(ctx, "unknown@example.com", "analytical"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	if _, err := other.Login(ctx, "ADA@example.com", "analytical"); err != nil {
		t.Fatalf("login: %v", err)
	}

	res, err := other.QueryTransactions(ctx, ports.Query{Page: 1, PageSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 || res.Pages != 2 || len(res.Items) != 1 {
		t.Fatalf("paging: %+v", res)
	}
	if !res.KPIs.Expense.Equal(decimal.RequireFromString("350.75")) {
		t.Fatalf("kpis: %+v", res.KPIs)
	}

	if err := other.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := other.CreateTransaction(ctx, core.DraftItem{}); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated after logout, got %v", err)
	}
}
