// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ErrSessionExpired is returned by expiring lookups for sessions past their lifetime.
// It wraps ErrNotFound so callers treat expired and missing sessions alike.
var ErrSessionExpired = fmt.Errorf("session expired: %w", ErrNotFound)

// Session maps an opaque token to the principal that owns it.
type Session struct {
	ID        string
	UserID    ulid.ULID
	CreatedAt time.Time

	// Duration is the lifetime in effect when the session was created.
	// Zero means the session never expires.
	Duration time.Duration
}

// NewSession creates a session with a fresh random token for userID.
func NewSession(userID ulid.ULID, duration time.Duration, createdAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if duration < 0 {
		duration = 0
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        token,
		UserID:    userID,
		CreatedAt: createdAt,
		Duration:  duration,
	}, nil
}

// IsExpiredAt reports whether a session created at s.CreatedAt has outlived
// lifetime at time t. A non-positive lifetime never expires.
func (s *Session) IsExpiredAt(t time.Time, lifetime time.Duration) bool {
	if lifetime <= 0 {
		return false
	}
	return s.CreatedAt.Add(lifetime).Before(t)
}

// Lifetime returns the duration recorded on the session, or fallback when the
// session was created without one.
func (s *Session) Lifetime(fallback time.Duration) time.Duration {
	if s.Duration > 0 {
		return s.Duration
	}
	return fallback
}

// GenerateToken returns a random 128-bit token rendered as a UUID string.
func GenerateToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "uuid.NewRandom").
			Wrap(err)
	}
	return id.String(), nil
}

// HashToken computes the SHA256 hash of a token.
// Durable stores keep only this hash.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionLookup resolves session tokens to sessions.
type SessionLookup interface {
	// Get returns the session for id.
	// Returns an error wrapping ErrNotFound if there is none.
	Get(ctx context.Context, id string) (*Session, error)
}

// SessionStore manages session persistence.
type SessionStore interface {
	SessionLookup

	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Delete removes the session for id.
	// Returns an error wrapping ErrNotFound if there is none.
	Delete(ctx context.Context, id string) error
}

// Clock returns the current time.
type Clock func() time.Time

// WithExpiry wraps lookup so that sessions that outlived their own recorded
// duration, or lifetime when they carry none, are reported as ErrSessionExpired.
// A non-positive lifetime returns lookup unchanged.
func WithExpiry(lookup SessionLookup, lifetime time.Duration, now Clock) SessionLookup {
	if lifetime <= 0 {
		return lookup
	}
	if now == nil {
		now = time.Now
	}
	return &expiringLookup{base: lookup, lifetime: lifetime, now: now}
}

type expiringLookup struct {
	base     SessionLookup
	lifetime time.Duration
	now      Clock
}

func (l *expiringLookup) Get(ctx context.Context, id string) (*Session, error) {
	session, err := l.base.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.CreatedAt.IsZero() {
		return nil, oops.Code("SESSION_NO_TIMESTAMP").Wrap(ErrSessionExpired)
	}
	lifetime := session.Lifetime(l.lifetime)
	if session.IsExpiredAt(l.now(), lifetime) {
		return nil, oops.Code("SESSION_EXPIRED").
			With("created_at", session.CreatedAt).
			With("lifetime", lifetime.String()).
			Wrap(ErrSessionExpired)
	}
	return session, nil
}

func isExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
