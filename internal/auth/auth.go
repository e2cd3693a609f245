// Package auth holds the credential and session helpers shared by the local
// backends.
package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateSignup checks the signup form fields.
func ValidateSignup(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return &core.ValidationError{Field: "name", Err: errors.New("name is required")}
	}
	if _, err := mail.ParseAddress(NormalizeEmail(email)); err != nil {
		return &core.ValidationError{Field: "email", Err: errors.New("invalid email address")}
	}
	if len(password) < MinPasswordLength {
		return &core.ValidationError{Field: "password", Err: fmt.Errorf("must be at least %d characters", MinPasswordLength)}
	}
	return nil
}

// HashPassword hashes with bcrypt at the given cost; cost 0 means the default.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword returns ErrInvalidCredentials on mismatch.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Session is the logged-in identity of one local backend session.
type Session struct {
	mu   sync.RWMutex
	user *core.User
}

// User returns the current user or core.ErrUnauthenticated.
func (s *Session) User() (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return core.User{}, core.ErrUnauthenticated
	}
	return *s.user, nil
}

func (s *Session) Set(u core.User) {
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
}

func (s *Session) Clear() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}
