// Package memory is the in-process backend. Records live only as long as
// the process, optionally seeded from a JSON file.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/importfile"
	"fintrack/internal/ports"
	"fintrack/internal/view"
)

type account struct {
	user core.User
	hash string
}

type Store struct {
	mu       sync.RWMutex
	accounts map[string]account
	items    map[string][]core.Transaction
	hashCost int
	today    func() core.Date
}

// Option configures a Store.
type Option func(*Store)

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) Option {
	return func(s *Store) { s.hashCost = cost }
}

// WithClock overrides the date used for KPIs and default dates.
func WithClock(today func() core.Date) Option {
	return func(s *Store) { s.today = today }
}

func New(opts ...Option) *Store {
	s := &Store{
		accounts: map[string]account{},
		items:    map[string][]core.Transaction{},
		today:    core.Today,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Seed is the on-disk seed format: accounts with plain-text passwords and
// their transactions.
type Seed struct {
	Accounts []struct {
		Name         string             `json:"name"`
		Email        string             `json:"email"`
		Password     string             `json:"password"`
		Transactions []core.Transaction `json:"transactions"`
	} `json:"accounts"`
}

// NewFromFile creates a store populated from a JSON seed file.
func NewFromFile(path string, opts ...Option) (*Store, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	s := New(opts...)
	for _, a := range seed.Accounts {
		u, err := s.register(a.Name, a.Email, a.Password)
		if err != nil {
			return nil, fmt.Errorf("seed account %q: %w", a.Email, err)
		}
		for _, t := range a.Transactions {
			if err := t.Validate(); err != nil {
				return nil, fmt.Errorf("seed transaction %q: %w", t.ID, err)
			}
			if t.ID == "" {
				t.ID = core.ID(uuid.NewString())
			}
			t.Amount = t.Amount.Round(2)
			s.items[u.Email] = append(s.items[u.Email], t)
		}
	}
	return s, nil
}

// OpenSession returns a backend bound to a new, logged-out session.
func (s *Store) OpenSession() ports.Backend {
	return &Session{store: s}
}

// Append stores a draft for owner and returns the created record.
func (s *Store) Append(_ context.Context, owner string, d core.DraftItem) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	d.Amount = d.Amount.Round(2)
	t := d.Transaction(core.ID(uuid.NewString()))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[owner] = append(s.items[owner], t)
	return t, nil
}

// List returns a copy of owner's records in insertion order.
func (s *Store) List(_ context.Context, owner string) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.items[owner]...)
}

func (s *Store) register(name, email, password string) (core.User, error) {
	if err := auth.ValidateSignup(name, email, password); err != nil {
		return core.User{}, err
	}
	email = auth.NormalizeEmail(email)
	hash, err := auth.HashPassword(password, s.hashCost)
	if err != nil {
		return core.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[email]; ok {
		return core.User{}, auth.ErrEmailTaken
	}
	u := core.User{Name: name, Email: email}
	s.accounts[email] = account{user: u, hash: hash}
	return u, nil
}

func (s *Store) authenticate(email, password string) (core.User, error) {
	s.mu.RLock()
	a, ok := s.accounts[auth.NormalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return core.User{}, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(a.hash, password); err != nil {
		return core.User{}, err
	}
	return a.user, nil
}

// Session is one browser session's view of the store.
type Session struct {
	store *Store
	auth  auth.Session
}

func (s *Session) Me(_ context.Context) (core.User, error) {
	return s.auth.User()
}

func (s *Session) Login(_ context.Context, email, password string) (core.User, error) {
	u, err := s.store.authenticate(email, password)
	if err != nil {
		return core.User{}, err
	}
	s.auth.Set(u)
	return u, nil
}

func (s *Session) Signup(_ context.Context, name, email, password string) (core.User, error) {
	u, err := s.store.register(name, email, password)
	if err != nil {
		return core.User{}, err
	}
	s.auth.Set(u)
	return u, nil
}

func (s *Session) Logout(_ context.Context) error {
	s.auth.Clear()
	return nil
}

func (s *Session) QueryTransactions(ctx context.Context, q ports.Query) (ports.PageResult, error) {
	u, err := s.auth.User()
	if err != nil {
		return ports.PageResult{}, err
	}
	return view.Execute(s.store.List(ctx, u.Email), q, s.store.today()), nil
}

func (s *Session) CreateTransaction(ctx context.Context, d core.DraftItem) (core.Transaction, error) {
	u, err := s.auth.User()
	if err != nil {
		return core.Transaction{}, err
	}
	return s.store.Append(ctx, u.Email, d)
}

func (s *Session) ParseImport(_ context.Context, files []ports.Upload) ([]ports.ParsedItem, error) {
	if _, err := s.auth.User(); err != nil {
		return nil, err
	}
	return importfile.Parse(files)
}
