// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/prairiepost/prairiepost/internal/auth"
)

// LoginAttemptRepository implements auth.LoginAttemptRepository using
// PostgreSQL. The login_attempts table is append-only.
type LoginAttemptRepository struct {
	pool poolIface
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository.
func NewLoginAttemptRepository(pool poolIface) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: pool}
}

// Record appends an attempt to the ledger. The id and timestamp come from the
// database (bigserial, NOW()).
func (r *LoginAttemptRepository) Record(ctx context.Context, username, ipAddress string, success bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO login_attempts (username, ip_address, success)
		VALUES ($1, $2, $3)
	`, username, ipAddress, success)
	if err != nil {
		return oops.Code("ATTEMPT_RECORD_FAILED").
			With("operation", "insert login attempt").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// RecentByUsername returns the newest attempts for a username, newest first.
func (r *LoginAttemptRepository) RecentByUsername(ctx context.Context, username string, limit int) ([]*auth.LoginAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, ip_address, success, created_at
		FROM login_attempts
		WHERE LOWER(username) = LOWER($1)
		ORDER BY id DESC
		LIMIT $2
	`, username, limit)
	if err != nil {
		return nil, oops.Code("ATTEMPT_QUERY_FAILED").
			With("operation", "get recent login attempts").
			With("username", username).
			Wrap(err)
	}
	defer rows.Close()

	var attempts []*auth.LoginAttempt
	for rows.Next() {
		var (
			attempt   auth.LoginAttempt
			createdAt time.Time
		)
		if err := rows.Scan(&attempt.ID, &attempt.Username, &attempt.IPAddress, &attempt.Success, &createdAt); err != nil {
			return nil, oops.Code("ATTEMPT_SCAN_FAILED").
				With("operation", "scan login attempt row").
				Wrap(err)
		}
		attempt.CreatedAt = createdAt
		attempts = append(attempts, &attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("ATTEMPT_ROWS_ERROR").
			With("operation", "iterate login attempt rows").
			Wrap(err)
	}

	return attempts, nil
}

// Compile-time interface check.
var _ auth.LoginAttemptRepository = (*LoginAttemptRepository)(nil)
