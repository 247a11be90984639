// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Principal is an account that can authenticate.
type Principal struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string

	// SessionID holds the hash of the most recently issued session token.
	SessionID *string

	// ResetTokenHash holds the hash of the live password reset token, if any.
	ResetTokenHash     *string
	ResetTokenIssuedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPrincipal creates a validated Principal with a fresh ID.
func NewPrincipal(email, passwordHash string) (*Principal, error) {
	if strings.TrimSpace(email) == "" {
		return nil, oops.Code("PRINCIPAL_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("PRINCIPAL_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Principal{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SetResetToken replaces any live reset token with tokenHash.
func (p *Principal) SetResetToken(tokenHash string, issuedAt time.Time) {
	p.ResetTokenHash = &tokenHash
	p.ResetTokenIssuedAt = &issuedAt
	p.UpdatedAt = issuedAt
}

// ClearResetToken removes the live reset token.
func (p *Principal) ClearResetToken() {
	p.ResetTokenHash = nil
	p.ResetTokenIssuedAt = nil
	p.UpdatedAt = time.Now()
}

// LookupField names a Principal attribute a UserDirectory can be queried by.
type LookupField string

// Supported lookup fields.
const (
	FieldID         LookupField = "id"
	FieldEmail      LookupField = "email"
	FieldSessionID  LookupField = "session_id"
	FieldResetToken LookupField = "reset_token_hash"
)

// Valid reports whether f is one of the supported lookup fields.
func (f LookupField) Valid() bool {
	switch f {
	case FieldID, FieldEmail, FieldSessionID, FieldResetToken:
		return true
	default:
		return false
	}
}

// UserDirectory manages principal persistence.
type UserDirectory interface {
	// Create stores a new principal.
	// Returns ErrAlreadyExists if the email is taken.
	Create(ctx context.Context, principal *Principal) error

	// Find returns every principal whose field equals value.
	// An empty slice means no match. Returns ErrUnsupportedField for unknown fields.
	// Email matching is case-insensitive.
	Find(ctx context.Context, field LookupField, value string) ([]*Principal, error)

	// Update replaces the stored principal with the same ID.
	// Returns ErrNotFound if it does not exist.
	Update(ctx context.Context, principal *Principal) error

	// The writes below touch only the columns they name, so concurrent
	// logins and resets on one principal never overwrite each other.

	// SetSessionStamp records stamp as the principal's latest session.
	// Returns ErrNotFound if the principal does not exist.
	SetSessionStamp(ctx context.Context, id ulid.ULID, stamp string) error

	// ClearSessionStamp removes stamp from whichever principal still holds it.
	// Returns ErrNotFound if no principal holds it.
	ClearSessionStamp(ctx context.Context, stamp string) error

	// ReplacePasswordHash swaps current for replacement.
	// Returns ErrNotFound if the principal is gone or its hash is no longer current.
	ReplacePasswordHash(ctx context.Context, id ulid.ULID, current, replacement string) error

	// SetResetToken stores tokenHash as the principal's only live reset token.
	// Returns ErrNotFound if the principal does not exist.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, issuedAt time.Time) error

	// ClearResetToken drops tokenHash without changing the password.
	// Returns ErrNotFound if no principal holds it.
	ClearResetToken(ctx context.Context, tokenHash string) error

	// RedeemResetToken sets passwordHash on the principal holding tokenHash and
	// drops the token in the same write. Exactly one caller wins a given token;
	// the rest get ErrNotFound.
	RedeemResetToken(ctx context.Context, tokenHash, passwordHash string) error
}

// FindOne returns the single principal whose field equals value.
// Returns ErrNotFound for no match and ErrMultipleResults for more than one.
func FindOne(ctx context.Context, dir UserDirectory, field LookupField, value string) (*Principal, error) {
	principals, err := dir.Find(ctx, field, value)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_LOOKUP_FAILED").
			With("field", string(field)).
			Wrap(err)
	}

	switch len(principals) {
	case 0:
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("field", string(field)).
			Wrap(ErrNotFound)
	case 1:
		return principals[0], nil
	default:
		return nil, oops.Code("PRINCIPAL_AMBIGUOUS").
			With("field", string(field)).
			With("count", len(principals)).
			Wrap(ErrMultipleResults)
	}
}
