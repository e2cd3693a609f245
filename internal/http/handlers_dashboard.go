package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/coordinator"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// Chart kinds served under /charts/{kind}.png.
const (
	chartCategory = "category"
	chartOverTime = "overtime"
	chartTotals   = "totals"
)

// applyDashboardQuery feeds the query string into the coordinator. A quick
// range wins over the filter form; the page is applied last.
func applyDashboardQuery(c *coordinator.Coordinator, q url.Values) {
	switch {
	case q.Has("range"):
		c.SetRange(q.Get("range"))
	case HasFilters(q):
		c.SetFilters(ParseFilters(q))
	}
	if p := ParsePage(q); p != 0 {
		c.SetPage(p)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	applyDashboardQuery(sess.coord, r.URL.Query())
	if _, err := sess.coord.Refresh(ctx); err != nil {
		if errors.Is(err, core.ErrUnauthenticated) {
			s.redirectToLogin(w, r)
			return
		}
		if !errors.Is(err, coordinator.ErrSuperseded) {
			applog.FromContext(ctx).WarnContext(ctx, "Dashboard refresh failed",
				applog.FieldOperation, applog.OpRefresh,
				applog.FieldError, err)
		}
	}
	s.renderDashboard(w, r, sess, http.StatusOK, entryForm{})
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, sess *session, status int, form entryForm) {
	u, _ := sess.currentUser()
	v, ok := sess.coord.Current()
	if form.Type == "" {
		form.Type = string(core.Expense)
	}
	page := dashboardPage{
		User:     u,
		Initials: u.Initials(),
		View:     v,
		HasView:  ok,
		State:    sess.coord.State(),
		Ranges:   quickRanges,
		Form:     form,
		Today:    s.today().String(),
		Preview: previewPage{
			Active: sess.staging.Len() > 0,
			Source: sess.staging.Source(),
			Items:  sess.staging.Items(),
			Total:  sess.staging.RunningTotal(),
		},
		// Flashes are taken last so notices raised above are included.
		Flashes: sess.takeFlashes(),
	}
	s.render(w, r, status, "dashboard.html", page)
}

// handleCreateTransaction adds one transaction from the dashboard form.
// Validation errors re-render the dashboard with 422 and the form kept.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	if err := r.ParseForm(); err != nil {
		sess.addFlash(flashError, "Invalid request.")
		s.renderDashboard(w, r, sess, http.StatusBadRequest, entryForm{})
		return
	}

	draft, form, err := ParseDraftForm(r.PostForm)
	if err == nil {
		var t core.Transaction
		t, err = sess.coord.AddTransaction(ctx, draft)
		if err == nil {
			atomic.AddInt64(&s.metrics.transactionsCreated, 1)
			applog.NewEvents(applog.FromContext(ctx)).
				TransactionCreated(ctx, string(t.ID), string(t.Type), t.Amount, t.Category)
			sess.addFlash(flashSuccess, fmt.Sprintf("Added %s %s in %s.", t.Type, core.FormatINR(t.Amount), t.DisplayCategory()))
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}

	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		form.Errors = map[string]string{ve.Field: validationText(ve)}
		s.renderDashboard(w, r, sess, http.StatusUnprocessableEntity, form)
	case errors.Is(err, core.ErrUnauthenticated):
		s.redirectToLogin(w, r)
	default:
		applog.FromContext(ctx).ErrorContext(ctx, "Create transaction failed",
			applog.FieldOperation, applog.OpCreate,
			applog.FieldError, err)
		sess.addFlash(flashError, userMessage(err))
		s.renderDashboard(w, r, sess, http.StatusBadGateway, form)
	}
}

// validationText is the inline message for a form field.
func validationText(ve *core.ValidationError) string {
	switch {
	case errors.Is(ve.Err, core.ErrInvalidAmount):
		return "Enter an amount greater than zero."
	case errors.Is(ve.Err, core.ErrEmptyCategory):
		return "Category is required."
	case errors.Is(ve.Err, core.ErrInvalidType):
		return "Choose income or expense."
	case errors.Is(ve.Err, core.ErrInvalidDate):
		return "Use a date like 2025-03-15."
	default:
		return ve.Err.Error()
	}
}

// handleChart serves a chart of the session's current view as PNG. Images
// are cached per session and view generation.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)
	kind := chi.URLParam(r, "kind")
	if kind != chartCategory && kind != chartOverTime && kind != chartTotals {
		http.NotFound(w, r)
		return
	}

	v, ok := sess.coord.Current()
	if !ok {
		var err error
		if v, err = sess.coord.Refresh(ctx); err != nil {
			if errors.Is(err, core.ErrUnauthenticated) {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}
			if v, ok = sess.coord.Current(); !ok {
				http.Error(w, "chart data unavailable", http.StatusBadGateway)
				return
			}
		}
	}

	key := fmt.Sprintf("%s:%d:%s", sess.id, v.Generation, kind)
	png, hit := s.charts.Get(key)
	if hit {
		atomic.AddInt64(&s.metrics.chartCacheHits, 1)
	} else {
		var err error
		switch kind {
		case chartCategory:
			png, err = s.renderer.ByCategory(v.ByCategory)
		case chartOverTime:
			png, err = s.renderer.OverTime(v.OverTime)
		case chartTotals:
			png, err = s.renderer.Totals(v.Summary)
		}
		if err != nil {
			applog.FromContext(ctx).WithComponent(applog.ComponentCharts).ErrorContext(ctx, "Chart render failed",
				applog.FieldOperation, applog.OpRender,
				"chart", kind,
				applog.FieldError, err)
			http.Error(w, "chart render failed", http.StatusInternalServerError)
			return
		}
		atomic.AddInt64(&s.metrics.chartRenders, 1)
		s.charts.Set(key, png)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(len(png)))
	_, _ = w.Write(png)
}
