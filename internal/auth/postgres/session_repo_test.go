// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prairiepost/prairiepost/internal/auth"
	"github.com/prairiepost/prairiepost/pkg/errutil"
)

var sessionCols = []string{"id", "user_id", "token_hash", "expires_at", "created_at"}

func newTestSession(t *testing.T) *auth.Session {
	t.Helper()
	session, err := auth.NewSession(ulid.Make(), "tokenhash", time.Now().Add(time.Hour))
	require.NoError(t, err)
	return session
}

func TestSessionRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	session := newTestSession(t)
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(
			session.ID.String(), session.UserID.String(), session.TokenHash,
			session.ExpiresAt, session.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewSessionRepository(mock)
	require.NoError(t, repo.Create(context.Background(), session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	session := newTestSession(t)
	rows := pgxmock.NewRows(sessionCols).AddRow(
		session.ID.String(), session.UserID.String(), session.TokenHash,
		session.ExpiresAt, session.CreatedAt,
	)
	mock.ExpectQuery(`FROM sessions`).
		WithArgs(session.TokenHash).
		WillReturnRows(rows)

	repo := NewSessionRepository(mock)
	got, err := repo.GetByTokenHash(context.Background(), session.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.UserID, got.UserID)
}

func TestSessionRepository_GetByTokenHash_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM sessions`).
		WithArgs("unknown").
		WillReturnRows(pgxmock.NewRows(sessionCols))

	repo := NewSessionRepository(mock)
	_, err = repo.GetByTokenHash(context.Background(), "unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrNotFound))
	errutil.AssertErrorCode(t, err, "SESSION_NOT_FOUND")
}

func TestSessionRepository_DeleteByTokenHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM sessions WHERE token_hash`).
		WithArgs("tokenhash").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := NewSessionRepository(mock)
	require.NoError(t, repo.DeleteByTokenHash(context.Background(), "tokenhash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_DeleteByTokenHash_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM sessions WHERE token_hash`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewSessionRepository(mock)
	err = repo.DeleteByTokenHash(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrNotFound))
}

func TestSessionRepository_DeleteByUser_ZeroRowsIsFine(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID := ulid.Make()
	mock.ExpectExec(`DELETE FROM sessions WHERE user_id`).
		WithArgs(userID.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewSessionRepository(mock)
	require.NoError(t, repo.DeleteByUser(context.Background(), userID))
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	repo := NewSessionRepository(mock)
	n, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
