// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/pkg/errutil"
)

var principalColumnNames = []string{
	"id", "email", "password_hash", "session_id", "reset_token_hash",
	"reset_token_issued_at", "created_at", "updated_at",
}

func newTestPrincipal(t *testing.T) *auth.Principal {
	t.Helper()
	p, err := auth.NewPrincipal("alice@example.com", "$argon2id$hash")
	require.NoError(t, err)
	return p
}

func TestPrincipalRepository_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		execErr  error
		wantErr  error
		wantCode string
	}{
		{name: "inserts principal"},
		{
			name:     "duplicate email",
			execErr:  &pgconn.PgError{Code: pgerrcode.UniqueViolation},
			wantErr:  auth.ErrAlreadyExists,
			wantCode: "PRINCIPAL_EXISTS",
		},
		{
			name:     "database error",
			execErr:  errors.New("connection refused"),
			wantCode: "PRINCIPAL_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			p := newTestPrincipal(t)
			exp := mock.ExpectExec(regexp.QuoteMeta("INSERT INTO principals")).
				WithArgs(p.ID.String(), p.Email, p.PasswordHash, p.SessionID, p.ResetTokenHash,
					p.ResetTokenIssuedAt, p.CreatedAt, p.UpdatedAt)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err = NewPrincipalRepository(mock).Create(ctx, p)
			if tt.wantCode == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPrincipalRepository_Find(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	stamp := "stamp-hash"

	t.Run("by email is case-insensitive", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows(principalColumnNames).
			AddRow(id.String(), "alice@example.com", "hash", &stamp, (*string)(nil), (*time.Time)(nil), created, created)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
			WithArgs("ALICE@example.com").
			WillReturnRows(rows)

		found, err := NewPrincipalRepository(mock).Find(ctx, auth.FieldEmail, "ALICE@example.com")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, id, found[0].ID)
		assert.Equal(t, "alice@example.com", found[0].Email)
		require.NotNil(t, found[0].SessionID)
		assert.Equal(t, stamp, *found[0].SessionID)
		assert.Nil(t, found[0].ResetTokenHash)
		assert.Equal(t, created, found[0].CreatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no match returns empty slice", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE reset_token_hash = $1")).
			WithArgs("nope").
			WillReturnRows(pgxmock.NewRows(principalColumnNames))

		found, err := NewPrincipalRepository(mock).Find(ctx, auth.FieldResetToken, "nope")
		require.NoError(t, err)
		assert.NotNil(t, found)
		assert.Empty(t, found)
	})

	t.Run("unsupported field never queries", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		_, err = NewPrincipalRepository(mock).Find(ctx, auth.LookupField("password_hash"), "x")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrUnsupportedField)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows(principalColumnNames).
			AddRow("not-a-ulid", "a@x.com", "hash", (*string)(nil), (*string)(nil), (*time.Time)(nil), created, created)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).WithArgs("not-a-ulid").WillReturnRows(rows)

		_, err = NewPrincipalRepository(mock).Find(ctx, auth.FieldID, "not-a-ulid")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "PRINCIPAL_INVALID_ID")
	})

	t.Run("query error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(regexp.QuoteMeta("WHERE session_id = $1")).
			WithArgs("s").
			WillReturnError(errors.New("connection refused"))

		_, err = NewPrincipalRepository(mock).Find(ctx, auth.FieldSessionID, "s")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "PRINCIPAL_FIND_FAILED")
		errutil.AssertErrorContext(t, err, "field", "session_id")
	})
}

func TestPrincipalRepository_Update(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		result   pgconn.CommandTag
		execErr  error
		wantErr  error
		wantCode string
	}{
		{name: "updates principal", result: pgxmock.NewResult("UPDATE", 1)},
		{name: "missing principal", result: pgxmock.NewResult("UPDATE", 0), wantErr: auth.ErrNotFound, wantCode: "PRINCIPAL_NOT_FOUND"},
		{
			name:     "email taken",
			execErr:  &pgconn.PgError{Code: pgerrcode.UniqueViolation},
			wantErr:  auth.ErrAlreadyExists,
			wantCode: "PRINCIPAL_EXISTS",
		},
		{name: "database error", execErr: errors.New("timeout"), wantCode: "PRINCIPAL_UPDATE_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			p := newTestPrincipal(t)
			p.SetResetToken("token-hash", time.Now())
			exp := mock.ExpectExec(regexp.QuoteMeta("UPDATE principals")).
				WithArgs(p.ID.String(), p.Email, p.PasswordHash, p.SessionID, p.ResetTokenHash,
					p.ResetTokenIssuedAt, pgxmock.AnyArg())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err = NewPrincipalRepository(mock).Update(ctx, p)
			if tt.wantCode == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPrincipalRepository_ColumnWrites(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	issued := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

	writes := []struct {
		name     string
		sql      string
		args     []any
		run      func(r *PrincipalRepository) error
		missCode string
	}{
		{
			name:     "set session stamp",
			sql:      "SET session_id = $2, updated_at = $3",
			args:     []any{id.String(), "stamp", pgxmock.AnyArg()},
			run:      func(r *PrincipalRepository) error { return r.SetSessionStamp(ctx, id, "stamp") },
			missCode: "PRINCIPAL_NOT_FOUND",
		},
		{
			name:     "clear session stamp",
			sql:      "SET session_id = NULL, updated_at = $2",
			args:     []any{"stamp", pgxmock.AnyArg()},
			run:      func(r *PrincipalRepository) error { return r.ClearSessionStamp(ctx, "stamp") },
			missCode: "PRINCIPAL_STAMP_NOT_FOUND",
		},
		{
			name:     "replace password hash",
			sql:      "WHERE id = $1 AND password_hash = $2",
			args:     []any{id.String(), "old", "new", pgxmock.AnyArg()},
			run:      func(r *PrincipalRepository) error { return r.ReplacePasswordHash(ctx, id, "old", "new") },
			missCode: "PRINCIPAL_NOT_FOUND",
		},
		{
			name:     "set reset token",
			sql:      "SET reset_token_hash = $2, reset_token_issued_at = $3, updated_at = $3",
			args:     []any{id.String(), "tok", issued},
			run:      func(r *PrincipalRepository) error { return r.SetResetToken(ctx, id, "tok", issued) },
			missCode: "PRINCIPAL_NOT_FOUND",
		},
		{
			name:     "clear reset token",
			sql:      "SET reset_token_hash = NULL, reset_token_issued_at = NULL, updated_at = $2",
			args:     []any{"tok", pgxmock.AnyArg()},
			run:      func(r *PrincipalRepository) error { return r.ClearResetToken(ctx, "tok") },
			missCode: "PRINCIPAL_RESET_TOKEN_NOT_FOUND",
		},
		{
			name:     "redeem reset token",
			sql:      "SET password_hash = $2, reset_token_hash = NULL, reset_token_issued_at = NULL, updated_at = $3",
			args:     []any{"tok", "new-hash", pgxmock.AnyArg()},
			run:      func(r *PrincipalRepository) error { return r.RedeemResetToken(ctx, "tok", "new-hash") },
			missCode: "PRINCIPAL_RESET_TOKEN_NOT_FOUND",
		},
	}

	for _, w := range writes {
		t.Run(w.name, func(t *testing.T) {
			t.Run("one row", func(t *testing.T) {
				mock, err := pgxmock.NewPool()
				require.NoError(t, err)
				defer mock.Close()

				mock.ExpectExec(regexp.QuoteMeta(w.sql)).
					WithArgs(w.args...).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))

				require.NoError(t, w.run(NewPrincipalRepository(mock)))
				require.NoError(t, mock.ExpectationsWereMet())
			})

			t.Run("no rows", func(t *testing.T) {
				mock, err := pgxmock.NewPool()
				require.NoError(t, err)
				defer mock.Close()

				mock.ExpectExec(regexp.QuoteMeta(w.sql)).
					WithArgs(w.args...).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))

				errutil.AssertCoded(t, w.run(NewPrincipalRepository(mock)), w.missCode, auth.ErrNotFound)
			})

			t.Run("database error", func(t *testing.T) {
				mock, err := pgxmock.NewPool()
				require.NoError(t, err)
				defer mock.Close()

				mock.ExpectExec(regexp.QuoteMeta(w.sql)).
					WithArgs(w.args...).
					WillReturnError(errors.New("timeout"))

				err = w.run(NewPrincipalRepository(mock))
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "PRINCIPAL_UPDATE_FAILED")
				errutil.AssertErrorContext(t, err, "operation", w.name)
			})
		})
	}
}
