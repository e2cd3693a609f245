package adapters

import (
	"context"
	"errors"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/importfile"
	"fintrack/internal/ports"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/view"
)

// SQLiteAdapter exposes SQLiteRepository and TransactionService as
// per-session ports.Backend values so the HTTP layer works unchanged
// on top of the SQLite + AMQP stack.
type SQLiteAdapter struct {
	storage  *storage.SQLiteRepository
	service  *services.TransactionService
	hashCost int
	today    func() core.Date
}

// Option configures a SQLiteAdapter.
type Option func(*SQLiteAdapter)

// WithHashCost sets the bcrypt cost for new passwords.
func WithHashCost(cost int) Option {
	return func(a *SQLiteAdapter) { a.hashCost = cost }
}

// WithClock overrides the date month-over-month KPIs are computed for.
func WithClock(today func() core.Date) Option {
	return func(a *SQLiteAdapter) { a.today = today }
}

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.TransactionService, opts ...Option) *SQLiteAdapter {
	a := &SQLiteAdapter{
		storage: storage,
		service: service,
		today:   core.Today,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// OpenSession implements ports.SessionOpener.
func (a *SQLiteAdapter) OpenSession() ports.Backend {
	return &sqliteSession{adapter: a}
}

type sqliteSession struct {
	adapter *SQLiteAdapter
	auth    auth.Session
}

func (s *sqliteSession) Me(_ context.Context) (core.User, error) {
	return s.auth.User()
}

func (s *sqliteSession) Login(ctx context.Context, email, password string) (core.User, error) {
	acct, err := s.adapter.storage.AccountByEmail(ctx, auth.NormalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if err := auth.CheckPassword(acct.PasswordHash, password); err != nil {
		return core.User{}, err
	}
	s.auth.Set(acct.User)
	return acct.User, nil
}

func (s *sqliteSession) Signup(ctx context.Context, name, email, password string) (core.User, error) {
	if err := auth.ValidateSignup(name, email, password); err != nil {
		return core.User{}, err
	}
	hash, err := auth.HashPassword(password, s.adapter.hashCost)
	if err != nil {
		return core.User{}, err
	}
	acct, err := s.adapter.storage.CreateAccount(ctx, name, auth.NormalizeEmail(email), hash)
	if errors.Is(err, storage.ErrEmailTaken) {
		return core.User{}, auth.ErrEmailTaken
	}
	if err != nil {
		return core.User{}, err
	}
	s.auth.Set(acct.User)
	return acct.User, nil
}

func (s *sqliteSession) Logout(_ context.Context) error {
	s.auth.Clear()
	return nil
}

func (s *sqliteSession) QueryTransactions(ctx context.Context, q ports.Query) (ports.PageResult, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return ports.PageResult{}, err
	}
	records, err := s.adapter.storage.ListTransactions(ctx, uid)
	if err != nil {
		return ports.PageResult{}, err
	}
	return view.Execute(records, q, s.adapter.today()), nil
}

func (s *sqliteSession) CreateTransaction(ctx context.Context, d core.DraftItem) (core.Transaction, error) {
	uid, err := s.userID(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	return s.adapter.service.CreateTransaction(ctx, uid, d)
}

func (s *sqliteSession) ParseImport(_ context.Context, files []ports.Upload) ([]ports.ParsedItem, error) {
	if _, err := s.auth.User(); err != nil {
		return nil, err
	}
	return importfile.Parse(files)
}

// userID resolves the logged-in user's row id. A user deleted behind the
// session's back is treated as logged out.
func (s *sqliteSession) userID(ctx context.Context) (int64, error) {
	u, err := s.auth.User()
	if err != nil {
		return 0, err
	}
	acct, err := s.adapter.storage.AccountByEmail(ctx, u.Email)
	if errors.Is(err, storage.ErrNotFound) {
		s.auth.Clear()
		return 0, core.ErrUnauthenticated
	}
	if err != nil {
		return 0, err
	}
	return acct.ID, nil
}
