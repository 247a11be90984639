// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionCookieName is used when no cookie name is configured.
const DefaultSessionCookieName = "session_id"

// Session operation labels.
const (
	sessionOpCreate  = "create"
	sessionOpDestroy = "destroy"
)

// DurableSessionStore is a SessionStore that outlives the process.
type DurableSessionStore interface {
	SessionStore

	// DeleteExpired removes sessions created more than lifetime ago and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, lifetime time.Duration) (int64, error)
}

// SessionConfig configures a SessionAuth strategy.
type SessionConfig struct {
	// CookieName is the cookie carrying the session token.
	CookieName string

	// Duration is the session lifetime; zero disables expiry.
	// Ignored by NewSessionAuth.
	Duration time.Duration
}

// SessionOption customizes a SessionAuth.
type SessionOption func(*SessionAuth)

// WithClock overrides the time source used for session timestamps and expiry.
func WithClock(now Clock) SessionOption {
	return func(a *SessionAuth) {
		if now != nil {
			a.now = now
		}
	}
}

// WithSessionLogger overrides the logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(a *SessionAuth) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithSessionMetrics overrides the counters sessions are recorded in.
func WithSessionMetrics(m *Metrics) SessionOption {
	return func(a *SessionAuth) {
		a.metrics = m
	}
}

// SessionAuth authenticates requests by a session cookie.
type SessionAuth struct {
	NoAuth
	cookieName string
	duration   time.Duration
	store      SessionStore
	lookup     SessionLookup
	users      UserDirectory
	now        Clock
	logger     *slog.Logger
	metrics    *Metrics
}

// NewSessionAuth creates a session strategy whose sessions never expire.
func NewSessionAuth(cfg SessionConfig, store SessionStore, users UserDirectory, opts ...SessionOption) (*SessionAuth, error) {
	cfg.Duration = 0
	return newSessionAuth(cfg, store, users, opts)
}

// NewExpiringSessionAuth creates a session strategy whose sessions expire
// cfg.Duration after creation.
func NewExpiringSessionAuth(cfg SessionConfig, store SessionStore, users UserDirectory, opts ...SessionOption) (*SessionAuth, error) {
	return newSessionAuth(cfg, store, users, opts)
}

// NewPersistentSessionAuth creates an expiring session strategy backed by a durable store.
func NewPersistentSessionAuth(cfg SessionConfig, store DurableSessionStore, users UserDirectory, opts ...SessionOption) (*SessionAuth, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("durable session store is required")
	}
	return newSessionAuth(cfg, store, users, opts)
}

func newSessionAuth(cfg SessionConfig, store SessionStore, users UserDirectory, opts []SessionOption) (*SessionAuth, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session store is required")
	}
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user directory is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookieName
	}
	if cfg.Duration < 0 {
		cfg.Duration = 0
	}

	a := &SessionAuth{
		cookieName: cfg.CookieName,
		duration:   cfg.Duration,
		store:      store,
		users:      users,
		now:        time.Now,
		logger:     slog.Default(),
		metrics:    DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.lookup = WithExpiry(store, a.duration, a.now)

	return a, nil
}

// CookieName returns the name of the session cookie.
func (a *SessionAuth) CookieName() string {
	return a.cookieName
}

// Duration returns the session lifetime; zero means sessions never expire.
func (a *SessionAuth) Duration() time.Duration {
	return a.duration
}

// SessionCookie returns the session token carried by r, or "".
func (a *SessionAuth) SessionCookie(r Request) string {
	if r == nil {
		return ""
	}
	token, ok := r.Cookie(a.cookieName)
	if !ok {
		return ""
	}
	return token
}

// CreateSession starts a session for userID and returns its token.
func (a *SessionAuth) CreateSession(ctx context.Context, userID ulid.ULID) (string, error) {
	session, err := NewSession(userID, a.duration, a.now())
	if err != nil {
		a.metrics.recordSession(sessionOpCreate, outcomeError)
		return "", err
	}

	if err := a.store.Create(ctx, session); err != nil {
		a.metrics.recordSession(sessionOpCreate, outcomeError)
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", userID.String()).
			Wrap(err)
	}

	a.metrics.recordSession(sessionOpCreate, outcomeSuccess)
	return session.ID, nil
}

// UserIDForSession returns the owner of a live session.
// Unknown and expired sessions yield ErrUnauthenticated.
func (a *SessionAuth) UserIDForSession(ctx context.Context, sessionID string) (ulid.ULID, error) {
	if sessionID == "" {
		a.metrics.recordResolution(strategySession, outcomeNoCredential)
		return ulid.ULID{}, ErrUnauthenticated
	}

	session, err := a.lookup.Get(ctx, sessionID)
	switch {
	case err == nil:
		return session.UserID, nil
	case isExpired(err):
		a.metrics.recordResolution(strategySession, outcomeExpired)
		return ulid.ULID{}, ErrUnauthenticated
	case errors.Is(err, ErrNotFound):
		a.metrics.recordResolution(strategySession, outcomeRejected)
		return ulid.ULID{}, ErrUnauthenticated
	default:
		a.metrics.recordResolution(strategySession, outcomeError)
		return ulid.ULID{}, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "get session").
			Wrap(err)
	}
}

// UserForSession returns the principal owning a live session.
func (a *SessionAuth) UserForSession(ctx context.Context, sessionID string) (*Principal, error) {
	userID, err := a.UserIDForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	principal, err := FindOne(ctx, a.users, FieldID, userID.String())
	if errors.Is(err, ErrNotFound) {
		a.logger.WarnContext(ctx, "session refers to missing principal", "user_id", userID.String())
		a.metrics.recordResolution(strategySession, outcomeRejected)
		return nil, ErrUnauthenticated
	}
	if err != nil {
		a.metrics.recordResolution(strategySession, outcomeError)
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "find principal by id").
			With("user_id", userID.String()).
			Wrap(err)
	}

	a.metrics.recordResolution(strategySession, outcomeResolved)
	return principal, nil
}

// CurrentUser resolves the session cookie of r to a principal.
func (a *SessionAuth) CurrentUser(ctx context.Context, r Request) (*Principal, error) {
	return a.UserForSession(ctx, a.SessionCookie(r))
}

// DestroySession ends the session named by the cookie of r.
// Returns false when r has no session cookie or the session does not exist.
func (a *SessionAuth) DestroySession(ctx context.Context, r Request) (bool, error) {
	return a.DestroySessionID(ctx, a.SessionCookie(r))
}

// DestroySessionID ends the session with the given token.
// Returns false when the session does not exist.
func (a *SessionAuth) DestroySessionID(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	err := a.store.Delete(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		a.metrics.recordSession(sessionOpDestroy, outcomeNotFound)
		return false, nil
	}
	if err != nil {
		a.metrics.recordSession(sessionOpDestroy, outcomeError)
		return false, oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}

	a.metrics.recordSession(sessionOpDestroy, outcomeSuccess)
	return true, nil
}

// SetSessionCookie writes the session cookie for token to w.
func (a *SessionAuth) SetSessionCookie(w CookieSetter, token string) {
	w.SetCookie(a.cookieName, token)
}

var _ Authenticator = (*SessionAuth)(nil)
