// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/authcore/pkg/errutil"
)

// Service orchestrates registration, login, sessions, and password resets.
// It holds no state of its own.
type Service struct {
	users    UserDirectory
	sessions *SessionAuth
	resets   *ResetTokenManager
	hasher   PasswordHasher
	logger   *slog.Logger
	metrics  *Metrics
}

// NewAuthService creates a new Service.
func NewAuthService(users UserDirectory, sessions *SessionAuth, resets *ResetTokenManager, hasher PasswordHasher) (*Service, error) {
	return NewAuthServiceWithLogger(users, sessions, resets, hasher, slog.Default())
}

// NewAuthServiceWithLogger creates a new Service with a custom logger.
func NewAuthServiceWithLogger(
	users UserDirectory,
	sessions *SessionAuth,
	resets *ResetTokenManager,
	hasher PasswordHasher,
	logger *slog.Logger,
) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user directory is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session strategy is required")
	}
	if resets == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("reset token manager is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		resets:   resets,
		hasher:   hasher,
		logger:   logger,
		metrics:  DefaultMetrics(),
	}, nil
}

// Sessions returns the session strategy used for login and logout.
func (s *Service) Sessions() *SessionAuth {
	return s.sessions
}

// RegisterUser creates a principal with a hashed password.
// Returns an error wrapping ErrAlreadyExists if the email is taken.
func (s *Service) RegisterUser(ctx context.Context, email, password string) (*Principal, error) {
	// Checked before hashing; a concurrent duplicate still fails on Create.
	existing, err := s.users.Find(ctx, FieldEmail, email)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "find principal by email").
			Wrap(err)
	}
	if len(existing) > 0 {
		return nil, oops.Code("AUTH_ALREADY_EXISTS").
			Errorf("user %s already exists: %w", email, ErrAlreadyExists)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	principal, err := NewPrincipal(email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, principal); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, oops.Code("AUTH_ALREADY_EXISTS").
				Errorf("user %s already exists: %w", email, err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create principal").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "principal registered", "principal_id", principal.ID.String())
	return principal, nil
}

// ValidLogin reports whether email and password identify a principal.
func (s *Service) ValidLogin(ctx context.Context, email, password string) bool {
	principal, err := FindOne(ctx, s.users, FieldEmail, email)
	if err != nil {
		return false
	}
	return s.hasher.Verify(password, principal.PasswordHash)
}

// Login verifies credentials and starts a session.
// Returns the principal and the plaintext session token.
func (s *Service) Login(ctx context.Context, email, password string) (*Principal, string, error) {
	principal, err := FindOne(ctx, s.users, FieldEmail, email)
	if errors.Is(err, ErrNotFound) {
		s.metrics.recordLogin(outcomeNotFound)
		return nil, "", oops.Code("AUTH_USER_NOT_FOUND").Wrap(ErrNotFound)
	}
	if err != nil {
		s.metrics.recordLogin(outcomeError)
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "find principal by email").
			Wrap(err)
	}

	if !s.hasher.Verify(password, principal.PasswordHash) {
		s.metrics.recordLogin(outcomeRejected)
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	if s.hasher.NeedsUpgrade(principal.PasswordHash) {
		s.upgradeHash(ctx, principal, password)
	}

	token, err := s.sessions.CreateSession(ctx, principal.ID)
	if err != nil {
		s.metrics.recordLogin(outcomeError)
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	stamp := HashToken(token)
	principal.SessionID = &stamp
	// Login succeeds even if the stamp is not persisted.
	if err := s.users.SetSessionStamp(ctx, principal.ID, stamp); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "failed to record session stamp", err)
	}

	s.metrics.recordLogin(outcomeSuccess)
	return principal, token, nil
}

// GetUserForSession returns the principal owning a live session.
// Returns ErrUnauthenticated for unknown or expired sessions.
func (s *Service) GetUserForSession(ctx context.Context, sessionID string) (*Principal, error) {
	return s.sessions.UserForSession(ctx, sessionID)
}

// Logout ends a session.
// Returns an error wrapping ErrNotFound if the session does not exist.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	destroyed, err := s.sessions.DestroySessionID(ctx, sessionID)
	if err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "destroy session").
			Wrap(err)
	}
	if !destroyed {
		return oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}

	err = s.users.ClearSessionStamp(ctx, HashToken(sessionID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		errutil.LogErrorContext(ctx, s.logger, "failed to clear session stamp", err)
	}
	return nil
}

// upgradeHash rehashes password and stores it only if no other write changed
// the hash since principal was read.
func (s *Service) upgradeHash(ctx context.Context, principal *Principal, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "failed to rehash password", err)
		return
	}
	err = s.users.ReplacePasswordHash(ctx, principal.ID, principal.PasswordHash, newHash)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "failed to store upgraded password hash", err)
		return
	}
	principal.PasswordHash = newHash
}

// RequestPasswordReset issues a reset token for the principal with email.
// Returns an error wrapping ErrNotFound if no principal has that email.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	return s.resets.Issue(ctx, email)
}

// ResetPassword redeems a reset token, replacing the principal's password.
// Returns an error wrapping ErrNotFound if no principal holds the token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.resets.Redeem(ctx, token, newPassword)
}
