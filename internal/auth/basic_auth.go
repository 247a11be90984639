// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// BasicAuth authenticates requests carrying "Authorization: Basic" credentials.
// The identifier is the principal's email.
type BasicAuth struct {
	NoAuth
	users   UserDirectory
	hasher  PasswordHasher
	logger  *slog.Logger
	metrics *Metrics
}

// NewBasicAuth creates a BasicAuth strategy.
func NewBasicAuth(users UserDirectory, hasher PasswordHasher) (*BasicAuth, error) {
	return NewBasicAuthWithLogger(users, hasher, slog.Default())
}

// NewBasicAuthWithLogger creates a BasicAuth strategy with a custom logger.
func NewBasicAuthWithLogger(users UserDirectory, hasher PasswordHasher, logger *slog.Logger) (*BasicAuth, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user directory is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	return &BasicAuth{
		users:   users,
		hasher:  hasher,
		logger:  logger,
		metrics: DefaultMetrics(),
	}, nil
}

// CurrentUser resolves the Basic credentials of r to a principal.
// Every parsing failure, unknown identifier, or wrong secret yields
// ErrUnauthenticated. Directory failures are returned as errors so they are
// not mistaken for bad credentials.
func (a *BasicAuth) CurrentUser(ctx context.Context, r Request) (*Principal, error) {
	identifier, secret, ok := ParseBasicCredential(a.AuthorizationHeader(r))
	if !ok {
		a.metrics.recordResolution(strategyBasic, outcomeNoCredential)
		return nil, ErrUnauthenticated
	}
	return a.UserFromCredentials(ctx, identifier, secret)
}

// UserFromCredentials returns the first principal with the given email whose
// password hash verifies against secret.
func (a *BasicAuth) UserFromCredentials(ctx context.Context, identifier, secret string) (*Principal, error) {
	if identifier == "" {
		a.metrics.recordResolution(strategyBasic, outcomeNoCredential)
		return nil, ErrUnauthenticated
	}

	candidates, err := a.users.Find(ctx, FieldEmail, identifier)
	if err != nil {
		a.metrics.recordResolution(strategyBasic, outcomeError)
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "find principal by email").
			Wrap(err)
	}

	for _, p := range candidates {
		if a.hasher.Verify(secret, p.PasswordHash) {
			a.metrics.recordResolution(strategyBasic, outcomeResolved)
			return p, nil
		}
	}

	a.logger.DebugContext(ctx, "basic credentials rejected", "candidates", len(candidates))
	a.metrics.recordResolution(strategyBasic, outcomeRejected)
	return nil, ErrUnauthenticated
}

var _ Authenticator = (*BasicAuth)(nil)
