package http

import (
	"errors"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	page := authPage{}
	if sess, ok := s.lookupSession(r); ok {
		if _, ok := sess.currentUser(); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		page.Flashes = sess.takeFlashes()
	}
	s.render(w, r, http.StatusOK, "login.html", page)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login.html", authPage{Error: "Invalid request."})
		return
	}
	email := sanitizeInput(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	page := authPage{Email: email}

	if email == "" || password == "" {
		page.Error = "Email and password are required."
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", page)
		return
	}

	sess := s.sessionForAuth(w, r)
	u, err := sess.backend.Login(ctx, email, password)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, core.ErrUnauthenticated):
			status = http.StatusUnauthorized
			page.Error = "Invalid email or password."
		case errors.Is(err, core.ErrValidation):
			status = http.StatusUnprocessableEntity
			page.Error = userMessage(err)
		default:
			applog.FromContext(ctx).ErrorContext(ctx, "Login failed",
				applog.FieldOperation, applog.OpLogin,
				applog.FieldError, err)
			page.Error = userMessage(err)
		}
		s.render(w, r, status, "login.html", page)
		return
	}

	s.rotateSession(w, r, sess, u)
	applog.FromContext(ctx).InfoContext(ctx, "User logged in", applog.FieldOperation, applog.OpLogin)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.lookupSession(r); ok {
		if _, ok := sess.currentUser(); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	s.render(w, r, http.StatusOK, "signup.html", authPage{})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "signup.html", authPage{Error: "Invalid request."})
		return
	}
	name := sanitizeInput(r.PostForm.Get("name"))
	email := sanitizeInput(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	page := authPage{Name: name, Email: email}

	sess := s.sessionForAuth(w, r)
	u, err := sess.backend.Signup(ctx, name, email, password)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			status = http.StatusConflict
			page.Error = "An account with this email already exists."
		case errors.Is(err, core.ErrValidation):
			status = http.StatusUnprocessableEntity
			page.Error = userMessage(err)
		default:
			applog.FromContext(ctx).ErrorContext(ctx, "Signup failed",
				applog.FieldOperation, applog.OpSignup,
				applog.FieldError, err)
			page.Error = userMessage(err)
		}
		s.render(w, r, status, "signup.html", page)
		return
	}

	next := s.rotateSession(w, r, sess, u)
	next.addFlash(flashSuccess, "Welcome, "+u.DisplayName()+"!")
	applog.FromContext(ctx).InfoContext(ctx, "User signed up", applog.FieldOperation, applog.OpSignup)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sess, ok := s.lookupSession(r); ok {
		if err := sess.backend.Logout(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Backend logout failed", applog.FieldError, err)
		}
		s.dropSession(sess)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
