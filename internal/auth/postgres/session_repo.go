// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/store"
)

// SessionRepository implements auth.DurableSessionStore using PostgreSQL.
// Rows are keyed by the token hash; plaintext tokens are never stored.
type SessionRepository struct {
	db  store.Querier
	now func() time.Time
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db store.Querier) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	if session == nil || session.ID == "" {
		return oops.Code("SESSION_INVALID").Errorf("session token cannot be empty")
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO auth_sessions (token_hash, user_id, created_at, duration_seconds)
		VALUES ($1, $2, $3, $4)
	`,
		auth.HashToken(session.ID),
		session.UserID.String(),
		session.CreatedAt,
		int64(session.Duration/time.Second),
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert auth_session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves the session for token id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*auth.Session, error) {
	var (
		userIDStr string
		createdAt time.Time
		seconds   int64
	)
	err := r.db.QueryRow(ctx, `
		SELECT user_id, created_at, duration_seconds
		FROM auth_sessions
		WHERE token_hash = $1
	`, auth.HashToken(id)).Scan(&userIDStr, &createdAt, &seconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: createdAt,
		Duration:  time.Duration(seconds) * time.Second,
	}, nil
}

// Delete removes the session for token id.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM auth_sessions WHERE token_hash = $1
	`, auth.HashToken(id))
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete auth_session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes sessions whose recorded duration has elapsed. Sessions
// stored without a duration are removed once they are older than lifetime; a
// non-positive lifetime keeps them.
func (r *SessionRepository) DeleteExpired(ctx context.Context, lifetime time.Duration) (int64, error) {
	now := r.now()
	var untimedCutoff *time.Time
	if lifetime > 0 {
		cutoff := now.Add(-lifetime)
		untimedCutoff = &cutoff
	}

	result, err := r.db.Exec(ctx, `
		DELETE FROM auth_sessions
		WHERE CASE WHEN duration_seconds > 0
		           THEN created_at + make_interval(secs => duration_seconds) < $1
		           ELSE created_at < $2
		      END
	`, now, untimedCutoff)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired auth_sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.DurableSessionStore = (*SessionRepository)(nil)
