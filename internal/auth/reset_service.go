// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authcore/pkg/errutil"
)

// Reset operation labels.
const (
	resetOpIssue  = "issue"
	resetOpRedeem = "redeem"
)

// ResetTokenManager issues and redeems single-use password reset tokens.
// A principal holds at most one live token; issuing a new one replaces it.
type ResetTokenManager struct {
	users   UserDirectory
	hasher  PasswordHasher
	ttl     time.Duration
	now     Clock
	logger  *slog.Logger
	metrics *Metrics
}

// ResetOption configures a ResetTokenManager.
type ResetOption func(*ResetTokenManager)

// WithResetTTL bounds the lifetime of issued tokens. Zero or negative keeps
// tokens valid until redeemed.
func WithResetTTL(ttl time.Duration) ResetOption {
	return func(m *ResetTokenManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithResetClock overrides the time source.
func WithResetClock(now Clock) ResetOption {
	return func(m *ResetTokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithResetLogger sets the logger used for best-effort cleanup failures.
func WithResetLogger(logger *slog.Logger) ResetOption {
	return func(m *ResetTokenManager) {
		m.logger = logger
	}
}

// WithResetMetrics replaces the default metrics.
func WithResetMetrics(metrics *Metrics) ResetOption {
	return func(m *ResetTokenManager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// NewResetTokenManager creates a ResetTokenManager. Without WithResetTTL its
// tokens never expire.
func NewResetTokenManager(users UserDirectory, hasher PasswordHasher, opts ...ResetOption) (*ResetTokenManager, error) {
	if users == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("password hasher is required")
	}

	m := &ResetTokenManager{
		users:   users,
		hasher:  hasher,
		now:     time.Now,
		logger:  slog.Default(),
		metrics: DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("logger is required")
	}
	return m, nil
}

// Issue generates a reset token for the principal with email, replacing any
// earlier token, and returns the plaintext token.
func (m *ResetTokenManager) Issue(ctx context.Context, email string) (string, error) {
	principal, err := FindOne(ctx, m.users, FieldEmail, email)
	if errors.Is(err, ErrNotFound) {
		m.metrics.recordReset(resetOpIssue, outcomeNotFound)
		return "", oops.Code("RESET_EMAIL_NOT_FOUND").Wrap(ErrNotFound)
	}
	if err != nil {
		m.metrics.recordReset(resetOpIssue, outcomeError)
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "find principal by email").
			Wrap(err)
	}

	token, err := GenerateToken()
	if err != nil {
		m.metrics.recordReset(resetOpIssue, outcomeError)
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	if err := m.users.SetResetToken(ctx, principal.ID, HashToken(token), m.now()); err != nil {
		m.metrics.recordReset(resetOpIssue, outcomeError)
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token").
			With("principal_id", principal.ID.String()).
			Wrap(err)
	}

	m.metrics.recordReset(resetOpIssue, outcomeSuccess)
	return token, nil
}

// Redeem sets a new password for the principal holding token and clears the token.
func (m *ResetTokenManager) Redeem(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return oops.Code("RESET_PASSWORD_EMPTY").Wrap(ErrEmptyPassword)
	}
	if token == "" {
		m.metrics.recordReset(resetOpRedeem, outcomeNotFound)
		return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrNotFound)
	}

	tokenHash := HashToken(token)
	principal, err := FindOne(ctx, m.users, FieldResetToken, tokenHash)
	if errors.Is(err, ErrNotFound) {
		m.metrics.recordReset(resetOpRedeem, outcomeNotFound)
		return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrNotFound)
	}
	if err != nil {
		m.metrics.recordReset(resetOpRedeem, outcomeError)
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "find principal by reset token").
			Wrap(err)
	}

	if m.expired(principal) {
		clearErr := m.users.ClearResetToken(ctx, tokenHash)
		if clearErr != nil && !errors.Is(clearErr, ErrNotFound) {
			errutil.LogErrorContext(ctx, m.logger, "failed to clear expired reset token", clearErr)
		}
		m.metrics.recordReset(resetOpRedeem, outcomeExpired)
		return oops.Code("RESET_TOKEN_EXPIRED").Wrap(ErrNotFound)
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		m.metrics.recordReset(resetOpRedeem, outcomeError)
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	// A concurrent redeem of the same token may have won since the lookup.
	err = m.users.RedeemResetToken(ctx, tokenHash, hash)
	if errors.Is(err, ErrNotFound) {
		m.metrics.recordReset(resetOpRedeem, outcomeNotFound)
		return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrNotFound)
	}
	if err != nil {
		m.metrics.recordReset(resetOpRedeem, outcomeError)
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			With("principal_id", principal.ID.String()).
			Wrap(err)
	}

	m.metrics.recordReset(resetOpRedeem, outcomeSuccess)
	return nil
}

func (m *ResetTokenManager) expired(p *Principal) bool {
	if m.ttl <= 0 || p.ResetTokenIssuedAt == nil {
		return false
	}
	return p.ResetTokenIssuedAt.Add(m.ttl).Before(m.now())
}
