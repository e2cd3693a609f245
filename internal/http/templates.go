package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/shopspring/decimal"

	"fintrack/internal/charts"
	"fintrack/internal/coordinator"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/view"
)

var templateFuncs = template.FuncMap{
	"inr": core.FormatINR,
	"signed": func(t core.Transaction) string {
		if t.Type == core.Expense {
			return "-" + core.FormatINR(t.Amount)
		}
		return "+" + core.FormatINR(t.Amount)
	},
	"pct":     formatPercent,
	"percent": func(v float64) string { return fmt.Sprintf("%.0f%%", v) },
	"color":   charts.PaletteColor,
	"date":    func(d core.Date) string { return d.String() },
	"add":     func(a, b int) int { return a + b },
}

// formatPercent renders a month-over-month delta with sign and one
// decimal, e.g. +3.0%.
func formatPercent(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// authPage backs login.html and signup.html.
type authPage struct {
	Name    string
	Email   string
	Error   string
	Flashes []flash
}

// dashboardPage backs dashboard.html.
type dashboardPage struct {
	User     core.User
	Initials string
	Flashes  []flash

	View    coordinator.View
	HasView bool
	Loading bool
	State   coordinator.State
	Ranges  []string

	Form    entryForm
	Today   string
	Preview previewPage
}

// previewPage is the import staging table.
type previewPage struct {
	Active bool
	Source string
	Items  []core.DraftItem
	Total  decimal.Decimal
}

var quickRanges = []string{view.RangeMTD, view.Range7D, view.RangeAll}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	ctx := r.Context()
	if s.templates == nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentTemplate).ErrorContext(ctx, "Template execution failed",
			"template", name,
			applog.FieldError, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
