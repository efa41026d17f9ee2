// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/prairiepost/prairiepost/pkg/errutil"
)

// IdentityState classifies the outcome of resolving a session token.
type IdentityState int

const (
	// StateAnonymous means no usable session: missing token, unknown token,
	// a vanished user, or a store failure. Requests proceed unauthenticated.
	StateAnonymous IdentityState = iota

	// StateExpired means the token matched a session whose expiry has passed.
	// Treated as anonymous for authorization, but distinguishable so callers
	// can tell "never logged in" from "session timed out".
	StateExpired

	// StateAuthenticated means the token matched a live session and its user.
	StateAuthenticated
)

// String returns the state name for logging.
func (s IdentityState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return "anonymous"
	}
}

// Identity is the result of resolving a request's session token.
// User is non-nil only when State is StateAuthenticated.
type Identity struct {
	State IdentityState
	User  *User
}

// IsAuthenticated reports whether the identity carries a live user.
func (i Identity) IsAuthenticated() bool {
	return i.State == StateAuthenticated && i.User != nil
}

// Anonymous is the zero identity for unauthenticated requests.
func Anonymous() Identity {
	return Identity{State: StateAnonymous}
}

// Resolver turns plaintext session tokens into identities. Resolution never
// fails a request: every error path degrades to an anonymous identity so a
// store outage reads as "logged out", not a 500.
type Resolver struct {
	sessions SessionRepository
	users    UserRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewResolver creates a Resolver. Returns an error if any dependency is nil.
func NewResolver(sessions SessionRepository, users UserRepository, logger *slog.Logger) (*Resolver, error) {
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Resolver{
		sessions: sessions,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Resolve maps a plaintext token to an identity.
//
// An expired session found during resolution is deleted best-effort; the
// identity is StateExpired either way.
func (r *Resolver) Resolve(ctx context.Context, token string) Identity {
	if token == "" {
		return Anonymous()
	}

	tokenHash := HashSessionToken(token)

	session, err := r.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogWarn(r.logger, "session lookup failed", err)
		}
		return Anonymous()
	}

	if session.IsExpiredAt(r.now()) {
		if err := r.sessions.DeleteByTokenHash(ctx, tokenHash); err != nil && !errors.Is(err, ErrNotFound) {
			errutil.LogWarn(r.logger, "failed to delete expired session", err)
		}
		return Identity{State: StateExpired}
	}

	user, err := r.users.GetByID(ctx, session.UserID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogWarn(r.logger, "session user lookup failed", err)
		}
		return Anonymous()
	}

	return Identity{State: StateAuthenticated, User: user}
}
