// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
)

// Directory implements auth.UserDirectory in memory.
type Directory struct {
	mu         sync.RWMutex
	principals map[ulid.ULID]*auth.Principal
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		principals: make(map[ulid.ULID]*auth.Principal),
	}
}

// Create stores a new principal. Emails are unique, compared case-insensitively.
func (d *Directory) Create(_ context.Context, principal *auth.Principal) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.principals[principal.ID]; ok {
		return oops.Code("PRINCIPAL_DUPLICATE_ID").
			With("id", principal.ID.String()).
			Wrap(auth.ErrAlreadyExists)
	}
	for _, existing := range d.principals {
		if strings.EqualFold(existing.Email, principal.Email) {
			return oops.Code("PRINCIPAL_DUPLICATE_EMAIL").Wrap(auth.ErrAlreadyExists)
		}
	}

	d.principals[principal.ID] = clonePrincipal(principal)
	return nil
}

// Find returns copies of every principal whose field equals value.
func (d *Directory) Find(_ context.Context, field auth.LookupField, value string) ([]*auth.Principal, error) {
	if !field.Valid() {
		return nil, oops.Code("PRINCIPAL_UNSUPPORTED_FIELD").
			With("field", string(field)).
			Wrap(auth.ErrUnsupportedField)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []*auth.Principal
	for _, p := range d.principals {
		if matchField(p, field, value) {
			matches = append(matches, clonePrincipal(p))
		}
	}
	return matches, nil
}

// Update replaces the stored principal with the same ID.
func (d *Directory) Update(_ context.Context, principal *auth.Principal) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.principals[principal.ID]; !ok {
		return notFound(principal.ID)
	}
	for id, existing := range d.principals {
		if id != principal.ID && strings.EqualFold(existing.Email, principal.Email) {
			return oops.Code("PRINCIPAL_DUPLICATE_EMAIL").Wrap(auth.ErrAlreadyExists)
		}
	}

	d.principals[principal.ID] = clonePrincipal(principal)
	return nil
}

// SetSessionStamp records stamp on the principal with id.
func (d *Directory) SetSessionStamp(_ context.Context, id ulid.ULID, stamp string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.principals[id]
	if !ok {
		return notFound(id)
	}
	p.SessionID = &stamp
	p.UpdatedAt = time.Now()
	return nil
}

// ClearSessionStamp removes stamp from the principal holding it.
func (d *Directory) ClearSessionStamp(_ context.Context, stamp string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.holding(auth.FieldSessionID, stamp)
	if p == nil {
		return oops.Code("PRINCIPAL_STAMP_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	p.SessionID = nil
	p.UpdatedAt = time.Now()
	return nil
}

// ReplacePasswordHash swaps the hash only while it still equals current.
func (d *Directory) ReplacePasswordHash(_ context.Context, id ulid.ULID, current, replacement string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.principals[id]
	if !ok || p.PasswordHash != current {
		return notFound(id)
	}
	p.PasswordHash = replacement
	p.UpdatedAt = time.Now()
	return nil
}

// SetResetToken replaces the principal's reset token.
func (d *Directory) SetResetToken(_ context.Context, id ulid.ULID, tokenHash string, issuedAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.principals[id]
	if !ok {
		return notFound(id)
	}
	p.SetResetToken(tokenHash, issuedAt)
	return nil
}

// ClearResetToken drops tokenHash from the principal holding it.
func (d *Directory) ClearResetToken(_ context.Context, tokenHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.holding(auth.FieldResetToken, tokenHash)
	if p == nil {
		return oops.Code("PRINCIPAL_RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	p.ClearResetToken()
	return nil
}

// RedeemResetToken sets passwordHash and drops tokenHash under one lock.
func (d *Directory) RedeemResetToken(_ context.Context, tokenHash, passwordHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.holding(auth.FieldResetToken, tokenHash)
	if p == nil {
		return oops.Code("PRINCIPAL_RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	p.PasswordHash = passwordHash
	p.ClearResetToken()
	return nil
}

// holding returns the stored principal whose field equals value. Callers hold d.mu.
func (d *Directory) holding(field auth.LookupField, value string) *auth.Principal {
	for _, p := range d.principals {
		if matchField(p, field, value) {
			return p
		}
	}
	return nil
}

func notFound(id ulid.ULID) error {
	return oops.Code("PRINCIPAL_NOT_FOUND").
		With("id", id.String()).
		Wrap(auth.ErrNotFound)
}

func matchField(p *auth.Principal, field auth.LookupField, value string) bool {
	switch field {
	case auth.FieldID:
		return p.ID.String() == value
	case auth.FieldEmail:
		return strings.EqualFold(p.Email, value)
	case auth.FieldSessionID:
		return p.SessionID != nil && *p.SessionID == value
	case auth.FieldResetToken:
		return p.ResetTokenHash != nil && *p.ResetTokenHash == value
	default:
		return false
	}
}

func clonePrincipal(p *auth.Principal) *auth.Principal {
	c := *p
	if p.SessionID != nil {
		s := *p.SessionID
		c.SessionID = &s
	}
	if p.ResetTokenHash != nil {
		h := *p.ResetTokenHash
		c.ResetTokenHash = &h
	}
	if p.ResetTokenIssuedAt != nil {
		t := *p.ResetTokenIssuedAt
		c.ResetTokenIssuedAt = &t
	}
	return &c
}

// Compile-time interface check.
var _ auth.UserDirectory = (*Directory)(nil)
