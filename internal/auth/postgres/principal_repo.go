// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/store"
)

const principalColumns = `id, email, password_hash, session_id, reset_token_hash, reset_token_issued_at, created_at, updated_at`

// lookupPredicates maps each supported lookup field to its WHERE clause.
// Field names never reach SQL text directly.
var lookupPredicates = map[auth.LookupField]string{
	auth.FieldID:         `id = $1`,
	auth.FieldEmail:      `LOWER(email) = LOWER($1)`,
	auth.FieldSessionID:  `session_id = $1`,
	auth.FieldResetToken: `reset_token_hash = $1`,
}

// PrincipalRepository implements auth.UserDirectory using PostgreSQL.
type PrincipalRepository struct {
	db store.Querier
}

// NewPrincipalRepository creates a new PrincipalRepository.
func NewPrincipalRepository(db store.Querier) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

// Create stores a new principal.
func (r *PrincipalRepository) Create(ctx context.Context, p *auth.Principal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO principals (`+principalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		p.ID.String(),
		p.Email,
		p.PasswordHash,
		p.SessionID,
		p.ResetTokenHash,
		p.ResetTokenIssuedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("PRINCIPAL_EXISTS").
			With("email", p.Email).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("PRINCIPAL_CREATE_FAILED").
			With("operation", "insert principal").
			Wrap(err)
	}
	return nil
}

// Find returns every principal whose field equals value, oldest first.
func (r *PrincipalRepository) Find(ctx context.Context, field auth.LookupField, value string) ([]*auth.Principal, error) {
	predicate, ok := lookupPredicates[field]
	if !ok {
		return nil, oops.Code("PRINCIPAL_UNSUPPORTED_FIELD").
			With("field", string(field)).
			Wrap(auth.ErrUnsupportedField)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+principalColumns+`
		FROM principals
		WHERE `+predicate+`
		ORDER BY created_at, id
	`, value)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_FIND_FAILED").
			With("operation", "query principals").
			With("field", string(field)).
			Wrap(err)
	}
	defer rows.Close()

	principals := []*auth.Principal{}
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PRINCIPAL_ROWS_ERROR").
			With("operation", "iterate principal rows").
			Wrap(err)
	}
	return principals, nil
}

// Update replaces every mutable column of the principal with p.ID.
func (r *PrincipalRepository) Update(ctx context.Context, p *auth.Principal) error {
	result, err := r.db.Exec(ctx, `
		UPDATE principals
		SET email = $2, password_hash = $3, session_id = $4,
		    reset_token_hash = $5, reset_token_issued_at = $6, updated_at = $7
		WHERE id = $1
	`,
		p.ID.String(),
		p.Email,
		p.PasswordHash,
		p.SessionID,
		p.ResetTokenHash,
		p.ResetTokenIssuedAt,
		time.Now(),
	)
	if isUniqueViolation(err) {
		return oops.Code("PRINCIPAL_EXISTS").
			With("email", p.Email).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_FAILED").
			With("operation", "update principal").
			With("id", p.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("id", p.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetSessionStamp records stamp as the principal's latest session.
func (r *PrincipalRepository) SetSessionStamp(ctx context.Context, id ulid.ULID, stamp string) error {
	return r.updateOne(ctx, "set session stamp", "PRINCIPAL_NOT_FOUND", `
		UPDATE principals SET session_id = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), stamp, time.Now())
}

// ClearSessionStamp removes stamp only from the principal still holding it.
func (r *PrincipalRepository) ClearSessionStamp(ctx context.Context, stamp string) error {
	return r.updateOne(ctx, "clear session stamp", "PRINCIPAL_STAMP_NOT_FOUND", `
		UPDATE principals SET session_id = NULL, updated_at = $2
		WHERE session_id = $1
	`, stamp, time.Now())
}

// ReplacePasswordHash swaps the hash only while it still equals current.
func (r *PrincipalRepository) ReplacePasswordHash(ctx context.Context, id ulid.ULID, current, replacement string) error {
	return r.updateOne(ctx, "replace password hash", "PRINCIPAL_NOT_FOUND", `
		UPDATE principals SET password_hash = $3, updated_at = $4
		WHERE id = $1 AND password_hash = $2
	`, id.String(), current, replacement, time.Now())
}

// SetResetToken stores tokenHash as the principal's live reset token.
func (r *PrincipalRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, issuedAt time.Time) error {
	return r.updateOne(ctx, "set reset token", "PRINCIPAL_NOT_FOUND", `
		UPDATE principals SET reset_token_hash = $2, reset_token_issued_at = $3, updated_at = $3
		WHERE id = $1
	`, id.String(), tokenHash, issuedAt)
}

// ClearResetToken drops tokenHash without touching the password.
func (r *PrincipalRepository) ClearResetToken(ctx context.Context, tokenHash string) error {
	return r.updateOne(ctx, "clear reset token", "PRINCIPAL_RESET_TOKEN_NOT_FOUND", `
		UPDATE principals SET reset_token_hash = NULL, reset_token_issued_at = NULL, updated_at = $2
		WHERE reset_token_hash = $1
	`, tokenHash, time.Now())
}

// RedeemResetToken sets the password and drops the token in one statement.
func (r *PrincipalRepository) RedeemResetToken(ctx context.Context, tokenHash, passwordHash string) error {
	return r.updateOne(ctx, "redeem reset token", "PRINCIPAL_RESET_TOKEN_NOT_FOUND", `
		UPDATE principals
		SET password_hash = $2, reset_token_hash = NULL, reset_token_issued_at = NULL, updated_at = $3
		WHERE reset_token_hash = $1
	`, tokenHash, passwordHash, time.Now())
}

// updateOne runs a single-row UPDATE. Zero affected rows wraps ErrNotFound with missCode.
func (r *PrincipalRepository) updateOne(ctx context.Context, operation, missCode, sql string, args ...any) error {
	result, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_FAILED").
			With("operation", operation).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(missCode).
			With("operation", operation).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanPrincipal(row pgx.Row) (*auth.Principal, error) {
	var (
		idStr string
		p     auth.Principal
	)
	err := row.Scan(
		&idStr,
		&p.Email,
		&p.PasswordHash,
		&p.SessionID,
		&p.ResetTokenHash,
		&p.ResetTokenIssuedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_SCAN_FAILED").
			With("operation", "scan principal").
			Wrap(err)
	}

	p.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_INVALID_ID").
			With("operation", "parse principal id").
			With("id", idStr).
			Wrap(err)
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ auth.UserDirectory = (*PrincipalRepository)(nil)
