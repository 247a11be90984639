// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/observability"
	"github.com/holomush/authcore/pkg/errutil"
)

// Handler serves the account API.
type Handler struct {
	svc           *auth.Service
	authenticator auth.Authenticator
	exempt        []string
	logger        *slog.Logger
	metrics       *observability.Metrics
	mux           *http.ServeMux
	root          http.Handler
}

// Option customizes a Handler.
type Option func(*Handler)

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records per-route request counts and latencies.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler creates the API handler. Requests pass through Middleware with
// authenticator and exempt before reaching a route.
func NewHandler(svc *auth.Service, authenticator auth.Authenticator, exempt []string, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("auth service is required")
	}
	if authenticator == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("authenticator is required")
	}

	h := &Handler{
		svc:           svc,
		authenticator: authenticator,
		exempt:        exempt,
		logger:        slog.Default(),
		mux:           http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.route("GET /{$}", h.index)
	h.route("POST /users", h.registerUser)
	h.route("GET /users/me", h.me)
	h.route("POST /sessions", h.login)
	h.route("DELETE /sessions", h.logout)
	h.route("GET /profile", h.profile)
	h.route("POST /reset_password", h.requestReset)
	h.route("PUT /reset_password", h.resetPassword)

	h.root = Middleware(authenticator, exempt, h.logger)(h.mux)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) route(pattern string, fn http.HandlerFunc) {
	if h.metrics == nil {
		h.mux.HandleFunc(pattern, fn)
		return
	}
	h.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		fn(rec, r)
		h.metrics.ObserveRequest(pattern, rec.status, time.Since(start))
	})
}

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Bienvenue"})
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	email, password := r.FormValue("email"), r.FormValue("password")
	if email == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email and password are required"})
		return
	}

	principal, err := h.svc.RegisterUser(r.Context(), email, password)
	if errors.Is(err, auth.ErrAlreadyExists) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email already registered"})
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to register user", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"email": principal.Email, "message": "user created"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	email, password := r.FormValue("email"), r.FormValue("password")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email missing")
		return
	}
	if password == "" {
		writeError(w, http.StatusBadRequest, "password missing")
		return
	}

	principal, token, err := h.svc.Login(r.Context(), email, password)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, "no user found for this email")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "wrong password")
		return
	case err != nil:
		h.internalError(w, r, "failed to log in", err)
		return
	}

	h.svc.Sessions().SetSessionCookie(CookieWriter{W: w}, token)
	writeJSON(w, http.StatusOK, map[string]string{"email": principal.Email, "message": "logged in"})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := h.svc.Sessions().SessionCookie(NewRequest(r))
	err := h.svc.Logout(r.Context(), token)
	if errors.Is(err, auth.ErrNotFound) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to log out", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	token := h.svc.Sessions().SessionCookie(NewRequest(r))
	principal, err := h.svc.GetUserForSession(r.Context(), token)
	if errors.Is(err, auth.ErrUnauthenticated) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": principal.Email})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFrom(r.Context())
	if principal == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, newUserView(principal))
}

func (h *Handler) requestReset(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	token, err := h.svc.RequestPasswordReset(r.Context(), email)
	if errors.Is(err, auth.ErrNotFound) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to issue reset token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "reset_token": token})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	token, password := r.FormValue("reset_token"), r.FormValue("new_password")

	err := h.svc.ResetPassword(r.Context(), token, password)
	switch {
	case errors.Is(err, auth.ErrEmptyPassword):
		writeError(w, http.StatusBadRequest, "new password missing")
		return
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	case err != nil:
		h.internalError(w, r, "failed to reset password", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "message": "Password updated"})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogErrorContext(r.Context(), h.logger, msg, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserView(p *auth.Principal) userView {
	return userView{
		ID:        p.ID.String(),
		Email:     p.Email,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(v)
}
