// Package ports declares the backend collaborators the view pipeline talks to.
package ports

import (
	"bytes"
	"context"
	"encoding/json"

	"fintrack/internal/core"
)

type (
	// Query selects one page of transactions. Empty strings mean no constraint.
	Query struct {
		Page     int
		PageSize int
		Q        string
		Start    string
		End      string
		Category string
		Type     string
	}

	// PageResult is one page plus the optional aggregates a backend computes.
	PageResult struct {
		Items  []core.Transaction `json:"items"`
		Total  int                `json:"total"`
		Pages  int                `json:"pages"`
		Page   int                `json:"page"`
		KPIs   *core.KPIs         `json:"kpis,omitempty"`
		Totals *core.Summary      `json:"totals,omitempty"`
	}

	// Upload is a file submitted for import parsing.
	Upload struct {
		Name        string
		ContentType string
		Data        []byte
	}

	// ParsedItem is a loosely typed row returned by an import parser.
	// Each field is kept raw and normalized by the staging area.
	ParsedItem struct {
		Date        json.RawMessage `json:"date,omitempty"`
		Type        json.RawMessage `json:"type,omitempty"`
		Amount      json.RawMessage `json:"amount,omitempty"`
		Category    json.RawMessage `json:"category,omitempty"`
		Description json.RawMessage `json:"description,omitempty"`
	}
)

// Ports for outbound adapters.
type (
	TransactionQuerier interface {
		QueryTransactions(ctx context.Context, q Query) (PageResult, error)
	}

	TransactionCreator interface {
		CreateTransaction(ctx context.Context, d core.DraftItem) (core.Transaction, error)
	}

	ImportParser interface {
		ParseImport(ctx context.Context, files []Upload) ([]ParsedItem, error)
	}

	// Authenticator manages the session identity. Me returns
	// core.ErrUnauthenticated when nobody is logged in.
	Authenticator interface {
		Me(ctx context.Context) (core.User, error)
		Login(ctx context.Context, email, password string) (core.User, error)
		Signup(ctx context.Context, name, email, password string) (core.User, error)
		Logout(ctx context.Context) error
	}

	// Backend is everything one browser session needs.
	Backend interface {
		TransactionQuerier
		TransactionCreator
		ImportParser
		Authenticator
	}

	// SessionOpener hands out a Backend bound to a fresh session identity.
	SessionOpener interface {
		OpenSession() Backend
	}
)

// IsNull reports whether a raw field is absent or JSON null.
func IsNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// DecodeParsedItems reads parser output: a bare array or an object with an
// "items" array. null entries are dropped; an object with no fields is kept.
func DecodeParsedItems(data []byte) ([]ParsedItem, error) {
	data = bytes.TrimSpace(data)
	var rows []*ParsedItem
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Items []*ParsedItem `json:"items"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		rows = wrapped.Items
	} else if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	items := make([]ParsedItem, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			items = append(items, *r)
		}
	}
	return items, nil
}
