// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package auth

import (
	"context"
	"time"
)

// LoginAttempt is one row of the append-only login audit ledger. Attempts are
// recorded for every login regardless of outcome and never mutated or deleted.
type LoginAttempt struct {
	ID        int64
	Username  string
	IPAddress string
	Success   bool
	CreatedAt time.Time
}

// LoginAttemptRepository appends to and inspects the login audit ledger.
type LoginAttemptRepository interface {
	// Record appends an attempt to the ledger.
	Record(ctx context.Context, username, ipAddress string, success bool) error

	// RecentByUsername returns the newest attempts for a username, newest
	// first, capped at limit. Used for audit inspection only.
	RecentByUsername(ctx context.Context, username string, limit int) ([]*LoginAttempt, error)
}
