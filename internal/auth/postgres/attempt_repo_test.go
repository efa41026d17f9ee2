// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginAttemptRepository_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO login_attempts`).
		WithArgs("deputy", "203.0.113.9", false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewLoginAttemptRepository(mock)
	require.NoError(t, repo.Record(context.Background(), "deputy", "203.0.113.9", false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginAttemptRepository_Record_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO login_attempts`).
		WithArgs("deputy", "203.0.113.9", true).
		WillReturnError(errors.New("connection refused"))

	repo := NewLoginAttemptRepository(mock)
	err = repo.Record(context.Background(), "deputy", "203.0.113.9", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLoginAttemptRepository_RecentByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	rows := pgxmock.NewRows([]string{"id", "username", "ip_address", "success", "created_at"}).
		AddRow(int64(3), "deputy", "203.0.113.9", true, now).
		AddRow(int64(2), "deputy", "203.0.113.9", false, now.Add(-time.Minute))
	mock.ExpectQuery(`FROM login_attempts`).
		WithArgs("deputy", 10).
		WillReturnRows(rows)

	repo := NewLoginAttemptRepository(mock)
	attempts, err := repo.RecentByUsername(context.Background(), "deputy", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, int64(3), attempts[0].ID)
	assert.True(t, attempts[0].Success)
	assert.False(t, attempts[1].Success)
}

func TestLoginAttemptRepository_RecentByUsername_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM login_attempts`).
		WithArgs("ghost", 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "ip_address", "success", "created_at"}))

	repo := NewLoginAttemptRepository(mock)
	attempts, err := repo.RecentByUsername(context.Background(), "ghost", 5)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}
