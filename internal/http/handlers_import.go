package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/importfile"
	applog "fintrack/internal/log"
	"fintrack/internal/staging"
)

// handleImportUpload parses the uploaded files with the backend and stages
// the rows for preview.
func (s *Server) handleImportUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentStaging)

	uploads, err := ParseUploads(w, r)
	if err != nil {
		logger.WarnContext(ctx, "Import upload rejected", applog.FieldOperation, applog.OpImport, applog.FieldError, err)
		switch {
		case errors.Is(err, errNoFiles):
			sess.addFlash(flashError, "Choose at least one file to import.")
		case errors.Is(err, errTooManyFiles):
			sess.addFlash(flashError, "Too many files. "+err.Error()+".")
		default:
			sess.addFlash(flashError, "The upload could not be read.")
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	items, err := sess.backend.ParseImport(ctx, uploads)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUnauthenticated):
			s.redirectToLogin(w, r)
			return
		case errors.Is(err, importfile.ErrUnsupportedFormat):
			sess.addFlash(flashError, "Unsupported file format. Upload CSV or JSON files.")
		case errors.Is(err, core.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
			logger.ErrorContext(ctx, "Import parse failed", applog.FieldOperation, applog.OpImport, applog.FieldError, err)
			sess.addFlash(flashError, userMessage(err))
		default:
			logger.WarnContext(ctx, "Import file rejected", applog.FieldOperation, applog.OpImport, applog.FieldError, err)
			sess.addFlash(flashError, "The uploaded file could not be parsed.")
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	source := ParseSource(r.FormValue("source"))
	if n := sess.staging.Stage(items, source); n == 0 {
		sess.addFlash(flashWarning, "No transactions were found in the uploaded files.")
	} else {
		sess.addFlash(flashInfo, fmt.Sprintf("Review %d parsed rows before importing.", n))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handlePreviewEdit applies the submitted fields to one staged row.
func (s *Server) handlePreviewEdit(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	index, err := ParseIndex(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	for _, e := range PreviewEdits(r.PostForm) {
		if err := sess.staging.Edit(index, e[0], e[1]); err != nil {
			s.previewError(w, r, sess, err)
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePreviewDelete(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	index, err := ParseIndex(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.staging.Delete(index); err != nil {
		s.previewError(w, r, sess, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) previewError(w http.ResponseWriter, r *http.Request, sess *session, err error) {
	if errors.Is(err, staging.ErrIndexOutOfRange) {
		sess.addFlash(flashWarning, "That row is no longer in the preview.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

// handleImportConfirm submits the staged rows one by one and reports how
// many made it.
func (s *Server) handleImportConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)
	events := applog.NewEvents(applog.FromContext(ctx))

	n, err := sess.staging.Commit(ctx, sess.backend)
	atomic.AddInt64(&s.metrics.importsCommitted, int64(n))

	var ce *staging.CommitError
	switch {
	case err == nil:
		events.ImportCommitted(ctx, n, 0, nil)
		sess.addFlash(flashSuccess, fmt.Sprintf("Imported %d of %d transactions.", n, n))
	case errors.Is(err, staging.ErrNothingToImport):
		sess.addFlash(flashWarning, "Nothing to import. Rows need an amount greater than zero.")
	case errors.As(err, &ce):
		events.ImportCommitted(ctx, ce.Submitted, ce.Pending, ce.Err)
		sess.addFlash(flashError, fmt.Sprintf("Imported %d of %d transactions. %s",
			ce.Submitted, ce.Submitted+ce.Pending, userMessage(ce.Err)))
		if errors.Is(ce.Err, core.ErrUnauthenticated) {
			sess.RequireLogin()
			s.redirectToLogin(w, r)
			return
		}
	default:
		sess.addFlash(flashError, userMessage(err))
	}

	if n > 0 {
		sess.coord.Reload(ctx)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleImportCancel(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.staging.Reset()
	sess.addFlash(flashInfo, "Import cancelled.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
