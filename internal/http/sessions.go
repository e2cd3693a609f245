package http

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"fintrack/internal/coordinator"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/ports"
	"fintrack/internal/remote"
	"fintrack/internal/staging"
)

const sessionCookie = "fintrack_session"

type ctxKey int

const sessionKey ctxKey = iota

type flashKind string

const (
	flashSuccess flashKind = "success"
	flashError   flashKind = "error"
	flashWarning flashKind = "warning"
	flashInfo    flashKind = "info"
)

type flash struct {
	Kind    flashKind
	Message string
}

// session is the server side of one browser: its backend session, the
// dashboard coordinator and the import staging area. It is the
// coordinator's presenter; errors become flash notices shown on the next
// page render.
type session struct {
	id      string
	backend ports.Backend
	coord   *coordinator.Coordinator
	staging *staging.Area

	mu      sync.Mutex
	user    *core.User
	flashes []flash
}

func (s *session) Present(coordinator.View) {}

func (s *session) ShowError(err error) {
	s.addFlash(flashError, userMessage(err))
}

func (s *session) RequireLogin() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}

func (s *session) currentUser() (core.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return core.User{}, false
	}
	return *s.user, true
}

func (s *session) setUser(u core.User) {
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
}

func (s *session) addFlash(kind flashKind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.flashes {
		if f.Kind == kind && f.Message == msg {
			return
		}
	}
	s.flashes = append(s.flashes, flash{Kind: kind, Message: msg})
}

// takeFlashes returns and clears the pending notices.
func (s *session) takeFlashes() []flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.flashes
	s.flashes = nil
	return out
}

// logID is the prefix of the session id used in logs.
func (s *session) logID() string {
	return s.id[:8]
}

// newSession wraps a backend session with fresh dashboard state.
func (s *Server) newSession(b ports.Backend) *session {
	sess := &session{id: uuid.NewString(), backend: b}
	logger := s.logger.With(applog.FieldSessionID, sess.logID())
	sess.coord = coordinator.New(b,
		coordinator.WithPresenter(sess),
		coordinator.WithPageSize(s.cfg.PageSize),
		coordinator.WithChartWindow(s.cfg.ChartWindow),
		coordinator.WithBudget(s.cfg.MonthlyBudget),
		coordinator.WithClock(s.today),
		coordinator.WithLogger(logger.WithComponent(applog.ComponentCoordinator)),
	)
	sess.staging = staging.New(
		staging.WithClock(s.today),
		staging.WithLogger(logger.WithComponent(applog.ComponentStaging).Slog()),
	)
	return sess
}

// lookupSession returns the session named by the request cookie.
func (s *Server) lookupSession(r *http.Request) (*session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return s.sessions.Get(c.Value)
}

// sessionForAuth returns the current session, or opens a new backend
// session when the browser has none.
func (s *Server) sessionForAuth(w http.ResponseWriter, r *http.Request) *session {
	if sess, ok := s.lookupSession(r); ok {
		return sess
	}
	sess := s.newSession(s.opener.OpenSession())
	s.storeSession(w, r, sess)
	return sess
}

// rotateSession moves an authenticated backend session to a new id so a
// pre-login cookie cannot be reused.
func (s *Server) rotateSession(w http.ResponseWriter, r *http.Request, old *session, u core.User) *session {
	s.dropSession(old)
	sess := s.newSession(old.backend)
	sess.setUser(u)
	s.storeSession(w, r, sess)
	return sess
}

func (s *Server) storeSession(w http.ResponseWriter, r *http.Request, sess *session) {
	s.sessions.Set(sess.id, sess)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) dropSession(sess *session) {
	s.sessions.Delete(sess.id)
	s.forgetCharts(sess.id)
}

func (s *Server) forgetCharts(sessionID string) {
	s.charts.DeletePrefix(sessionID + ":")
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireUser resolves the session and its user, asking the backend when
// the user is not known yet. Anything unauthenticated goes to /login.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookupSession(r)
		if !ok {
			s.redirectToLogin(w, r)
			return
		}
		ctx := applog.WithContext(r.Context(), applog.FromContext(r.Context()).With(applog.FieldSessionID, sess.logID()))

		if _, ok := sess.currentUser(); !ok {
			u, err := sess.backend.Me(ctx)
			if err != nil {
				if !errors.Is(err, core.ErrUnauthenticated) {
					applog.FromContext(ctx).WarnContext(ctx, "Session check failed", applog.FieldError, err)
					sess.addFlash(flashError, userMessage(err))
				}
				s.redirectToLogin(w, r)
				return
			}
			sess.setUser(u)
		}

		ctx = context.WithValue(ctx, sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *session {
	sess, _ := ctx.Value(sessionKey).(*session)
	return sess
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// userMessage is the notice shown for an error.
func userMessage(err error) string {
	var ve *core.ValidationError
	var se *remote.StatusError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, core.ErrUnauthenticated):
		return "Your session has ended. Please log in again."
	case errors.Is(err, context.DeadlineExceeded):
		return "The server took too long to respond. Please try again."
	case errors.As(err, &se):
		return "The server could not complete the request. Please try again."
	case errors.Is(err, core.ErrNetwork):
		return "Could not reach the server. Please check your connection."
	default:
		return "Something went wrong. Please try again."
	}
}
