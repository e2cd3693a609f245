package http

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"fintrack/internal/coordinator"
	"fintrack/internal/core"
)

func TestHasFilters(t *testing.T) {
	tests := []struct {
		query url.Values
		want  bool
	}{
		{url.Values{}, false},
		{url.Values{"page": {"2"}}, false},
		{url.Values{"range": {"7D"}}, false},
		{url.Values{"q": {""}}, true},
		{url.Values{"category": {"Food"}}, true},
	}

	for _, tt := range tests {
		if got := HasFilters(tt.query); got != tt.want {
			t.Errorf("HasFilters(%v) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		want  coordinator.Filters
	}{
		{
			name:  "all fields",
			query: url.Values{"q": {"  lunch "}, "type": {"Expense"}, "start": {"2025-03-01"}, "end": {"2025-03-31"}, "category": {"Food"}},
			want:  coordinator.Filters{Query: "lunch", Type: "expense", Start: "2025-03-01", End: "2025-03-31", Category: "Food"},
		},
		{
			name:  "bad dates are dropped",
			query: url.Values{"start": {"03/01/2025"}, "end": {"tomorrow"}},
			want:  coordinator.Filters{},
		},
		{
			name:  "control characters stripped",
			query: url.Values{"q": {"caf\x00e\x1b"}},
			want:  coordinator.Filters{Query: "cafe"},
		},
		{
			name:  "timestamps truncated to the day",
			query: url.Values{"start": {"2025-03-01T10:00:00Z"}},
			want:  coordinator.Filters{Start: "2025-03-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseFilters(tt.query); got != tt.want {
				t.Errorf("ParseFilters() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"3", 3},
		{" 2 ", 2},
		{"abc", 0},
		{"-1", -1},
	}

	for _, tt := range tests {
		if got := ParsePage(url.Values{"page": {tt.raw}}); got != tt.want {
			t.Errorf("ParsePage(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestParseDraftForm(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		wantField string
	}{
		{"valid", url.Values{"type": {"expense"}, "amount": {"12.50"}, "category": {"Food"}, "date": {"2025-03-10"}}, ""},
		{"blank date", url.Values{"type": {"income"}, "amount": {"100"}, "category": {"Salary"}}, ""},
		{"unknown type", url.Values{"type": {"transfer"}, "amount": {"1"}, "category": {"x"}}, "type"},
		{"missing type", url.Values{"amount": {"1"}, "category": {"x"}}, "type"},
		{"letters in amount", url.Values{"type": {"expense"}, "amount": {"12a"}, "category": {"x"}}, "amount"},
		{"empty amount", url.Values{"type": {"expense"}, "category": {"x"}}, "amount"},
		{"bad date", url.Values{"type": {"expense"}, "amount": {"5"}, "category": {"x"}, "date": {"15/03/2025"}}, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, in, err := ParseDraftForm(tt.form)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *core.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.wantField {
				t.Fatalf("expected validation error on %s, got %v", tt.wantField, err)
			}
			if in.Amount != tt.form.Get("amount") {
				t.Errorf("form echo lost the amount: %+v", in)
			}
		})
	}
}

func TestParseDraftFormValues(t *testing.T) {
	d, in, err := ParseDraftForm(url.Values{
		"type":        {"expense"},
		"amount":      {"12,5"},
		"category":    {" Food "},
		"date":        {"2025-03-10"},
		"description": {"lunch\x07"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Type != core.Expense || d.Amount.StringFixed(2) != "12.50" || d.Category != "Food" || d.Description != "lunch" {
		t.Fatalf("draft %+v", d)
	}
	if d.Date.String() != "2025-03-10" || in.Date != "2025-03-10" {
		t.Fatalf("date %v form %+v", d.Date, in)
	}

	d, _, err = ParseDraftForm(url.Values{"type": {"income"}, "amount": {"1"}, "category": {"Gift"}})
	if err != nil || d.Date.Valid() {
		t.Fatalf("blank date should stay unset: %v %v", d.Date, err)
	}
}

func TestParseSource(t *testing.T) {
	tests := map[string]string{
		"receipt":   "receipt",
		" RECEIPT ": "receipt",
		"statement": "statement",
		"":          "statement",
		"other":     "statement",
	}
	for in, want := range tests {
		if got := ParseSource(in); got != want {
			t.Errorf("ParseSource(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"12", 12, false},
		{"-1", 0, true},
		{"x", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseIndex(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIndex(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, errInvalidIndex) {
			t.Errorf("ParseIndex(%q) error %v does not wrap errInvalidIndex", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("ParseIndex(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestPreviewEdits(t *testing.T) {
	edits := PreviewEdits(url.Values{
		"amount":   {"20"},
		"date":     {"2025-03-01"},
		"category": {" Rent "},
		"ignored":  {"x"},
	})
	want := [][2]string{{"date", "2025-03-01"}, {"amount", "20"}, {"category", "Rent"}}
	if len(edits) != len(want) {
		t.Fatalf("edits = %v, want %v", edits, want)
	}
	for i := range want {
		if edits[i] != want[i] {
			t.Errorf("edit %d = %v, want %v", i, edits[i], want[i])
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{"tab\there", "tab\there"},
		{"line\nbreak", "line\nbreak"},
		{"nul\x00byte", "nulbyte"},
		{"\x1b[31mred", "[31mred"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func multipartRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.WriteField("source", "statement"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestParseUploads(t *testing.T) {
	req := multipartRequest(t, map[string]string{"march.csv": "date,type,amount,category\n"})
	uploads, err := ParseUploads(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 1 || uploads[0].Name != "march.csv" || len(uploads[0].Data) == 0 {
		t.Fatalf("uploads %+v", uploads)
	}

	req = multipartRequest(t, nil)
	if _, err := ParseUploads(httptest.NewRecorder(), req); !errors.Is(err, errNoFiles) {
		t.Fatalf("expected errNoFiles, got %v", err)
	}

	many := make(map[string]string)
	for i := 0; i <= maxUploadFiles; i++ {
		many[string(rune('a'+i))+".csv"] = "x"
	}
	req = multipartRequest(t, many)
	if _, err := ParseUploads(httptest.NewRecorder(), req); !errors.Is(err, errTooManyFiles) {
		t.Fatalf("expected errTooManyFiles, got %v", err)
	}
}
