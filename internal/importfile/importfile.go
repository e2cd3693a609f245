// Package importfile parses uploaded statement files into loosely typed
// rows for the staging area. CSV and JSON are understood; other formats
// are rejected.
package importfile

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"fintrack/internal/ports"
)

var ErrUnsupportedFormat = errors.New("unsupported import format")

// Parse parses every upload and concatenates the rows in upload order.
func Parse(files []ports.Upload) ([]ports.ParsedItem, error) {
	var out []ports.ParsedItem
	for _, f := range files {
		var (
			items []ports.ParsedItem
			err   error
		)
		switch format(f) {
		case "csv":
			items, err = parseCSV(f.Data)
		case "json":
			items, err = ports.DecodeParsedItems(f.Data)
		default:
			err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		out = append(out, items...)
	}
	return out, nil
}

func format(f ports.Upload) string {
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	}
	switch {
	case strings.Contains(f.ContentType, "csv"):
		return "csv"
	case strings.Contains(f.ContentType, "json"):
		return "json"
	}
	return ""
}

// parseCSV expects a header row naming date, type, amount, category and
// description in any order. Missing columns and blank cells stay null.
func parseCSV(data []byte) ([]ports.ParsedItem, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	colDate := indexOf(headers, "date")
	colType := indexOf(headers, "type")
	colAmount := indexOf(headers, "amount")
	colCategory := indexOf(headers, "category")
	colDesc := indexOf(headers, "description")
	if colAmount == -1 {
		return nil, fmt.Errorf("unexpected header: missing amount; got headers=%v", headers)
	}

	var out []ports.ParsedItem
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ports.ParsedItem{
			Date:        cell(row, colDate),
			Type:        cell(row, colType),
			Amount:      cell(row, colAmount),
			Category:    cell(row, colCategory),
			Description: cell(row, colDesc),
		})
	}
	return out, nil
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

// cell returns the value as a JSON string, or nil when blank or absent.
func cell(row []string, idx int) json.RawMessage {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	v := strings.TrimSpace(row[idx])
	if v == "" {
		return nil
	}
	b, _ := json.Marshal(v)
	return b
}
