// Package http serves the dashboard: pages, chart images and the import
// preview, on top of one backend session per browser.
//
// This file holds the form and query parsing shared by the handlers.
package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/coordinator"
	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/staging"
)

const (
	maxUploadBytes = 10 << 20
	maxUploadFiles = 10
)

var (
	errNoFiles      = errors.New("no files uploaded")
	errTooManyFiles = fmt.Errorf("at most %d files can be imported at once", maxUploadFiles)
	errInvalidIndex = errors.New("invalid row index")
)

var (
	filterQueryKeys = []string{"q", "type", "start", "end", "category"}
	editableFields  = []string{staging.FieldDate, staging.FieldType, staging.FieldAmount, staging.FieldCategory, staging.FieldDescription}
)

// entryForm echoes the add-transaction form back with its field errors.
type entryForm struct {
	Type        string
	Amount      string
	Category    string
	Date        string
	Description string
	Errors      map[string]string
}

// HasFilters reports whether the query carries an explicit filter form
// submission.
func HasFilters(q url.Values) bool {
	for _, k := range filterQueryKeys {
		if q.Has(k) {
			return true
		}
	}
	return false
}

// ParseFilters reads the dashboard filter form. Dates that do not parse
// are dropped rather than sent to the backend.
func ParseFilters(q url.Values) coordinator.Filters {
	f := coordinator.Filters{
		Query:    sanitizeInput(q.Get("q")),
		Type:     strings.ToLower(strings.TrimSpace(q.Get("type"))),
		Category: sanitizeInput(q.Get("category")),
	}
	if d, err := core.ParseDate(q.Get("start")); err == nil {
		f.Start = d.String()
	}
	if d, err := core.ParseDate(q.Get("end")); err == nil {
		f.End = d.String()
	}
	return f
}

// ParsePage returns the requested page, or 0 when absent or malformed.
func ParsePage(q url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	if err != nil {
		return 0
	}
	return n
}

// ParseDraftForm turns the add-transaction form into a draft. The first
// field that cannot be parsed is returned as a *core.ValidationError; the
// remaining checks are left to the coordinator. A blank date is left
// unset so the coordinator defaults it to today.
func ParseDraftForm(form url.Values) (core.DraftItem, entryForm, error) {
	in := entryForm{
		Type:        strings.TrimSpace(form.Get("type")),
		Amount:      strings.TrimSpace(form.Get("amount")),
		Category:    sanitizeInput(form.Get("category")),
		Date:        strings.TrimSpace(form.Get("date")),
		Description: sanitizeInput(form.Get("description")),
	}
	d := core.DraftItem{Category: in.Category, Description: in.Description}

	t, err := core.ParseTxType(in.Type)
	if err != nil {
		return d, in, &core.ValidationError{Field: "type", Err: core.ErrInvalidType}
	}
	d.Type = t

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return d, in, &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
	}
	d.Amount = amount

	if in.Date != "" {
		date, err := core.ParseDate(in.Date)
		if err != nil {
			return d, in, &core.ValidationError{Field: "date", Err: core.ErrInvalidDate}
		}
		d.Date = date
	}
	return d, in, nil
}

// ParseUploads reads the "files" parts of a multipart import request.
func ParseUploads(w http.ResponseWriter, r *http.Request) ([]ports.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("parse upload: %w", err)
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, errNoFiles
	}
	if len(headers) > maxUploadFiles {
		return nil, errTooManyFiles
	}

	uploads := make([]ports.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		uploads = append(uploads, ports.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ParseSource accepts "receipt" or "statement", defaulting to statement.
func ParseSource(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "receipt") {
		return "receipt"
	}
	return "statement"
}

// ParseIndex parses a non-negative preview row index.
func ParseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidIndex, s)
	}
	return n, nil
}

// PreviewEdits returns the editable fields present in the form, in a
// stable order.
func PreviewEdits(form url.Values) [][2]string {
	var edits [][2]string
	for _, f := range editableFields {
		if form.Has(f) {
			edits = append(edits, [2]string{f, sanitizeInput(form.Get(f))})
		}
	}
	return edits
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
