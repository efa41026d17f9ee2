// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Display name validation constraints.
const (
	MinDisplayNameLength = 3
	MaxDisplayNameLength = 30
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 12

var (
	// emailRegex matches a local part, an @, and a domain with at least one dot.
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// displayNameRegex allows letters, digits, spaces, underscores, and hyphens.
	displayNameRegex = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)
)

// User represents a registered account.
type User struct {
	ID               ulid.ULID
	Username         string
	Email            string
	PasswordHash     string
	DisplayName      string
	ProfileColor     *string
	ProfileAvatar    *string
	FailedLoginCount int
	LockoutUntil     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewUser creates a User with a fresh id and timestamps. The password hash
// must already be computed; profile fields start empty.
func NewUser(username, email, passwordHash, displayName string) *User {
	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Profile is the public projection of a User, safe to hand to other
// subsystems and to serialize to clients. It never carries credentials.
type Profile struct {
	ID            ulid.ULID
	DisplayName   string
	ProfileColor  *string
	ProfileAvatar *string
}

// Profile returns the public projection of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		DisplayName:   u.DisplayName,
		ProfileColor:  u.ProfileColor,
		ProfileAvatar: u.ProfileAvatar,
	}
}

// IsLocked returns true if the user is currently locked out.
func (u *User) IsLocked(now time.Time) bool {
	return IsLockedOut(u.LockoutUntil, now)
}

// RecordFailure increments the failure counter and applies the lockout policy.
func (u *User) RecordFailure(policy LockoutPolicy, now time.Time) {
	u.FailedLoginCount++
	u.LockoutUntil = policy.Apply(u.FailedLoginCount, u.LockoutUntil, now)
	u.UpdatedAt = now
}

// RecordSuccess clears the failure counter and any lockout.
func (u *User) RecordSuccess(now time.Time) {
	u.FailedLoginCount = 0
	u.LockoutUntil = nil
	u.UpdatedAt = now
}

// ValidateEmail returns true if the email matches a standard address grammar.
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// ValidateDisplayName returns true if the display name is 3-30 characters of
// letters, digits, spaces, underscores, or hyphens.
func ValidateDisplayName(displayName string) bool {
	v := strings.TrimSpace(displayName)
	if len(v) < MinDisplayNameLength || len(v) > MaxDisplayNameLength {
		return false
	}
	return displayNameRegex.MatchString(v)
}

// PasswordIssues returns every strength rule the password violates. The
// username is checked as a forbidden substring (case-insensitive); pass an
// empty username to skip that rule.
func PasswordIssues(password, username string) []string {
	var issues []string

	if len(password) < MinPasswordLength {
		issues = append(issues, "Password must be at least 12 characters.")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		issues = append(issues, "Password must include a lowercase letter.")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		issues = append(issues, "Password must include an uppercase letter.")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= '0' && r <= '9' }) {
		issues = append(issues, "Password must include a number.")
	}
	hasSymbol := strings.ContainsFunc(password, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9')
	})
	if !hasSymbol {
		issues = append(issues, "Password must include a symbol.")
	}

	u := strings.ToLower(strings.TrimSpace(username))
	if u != "" && strings.Contains(strings.ToLower(password), u) {
		issues = append(issues, "Password must not contain your username.")
	}

	return issues
}

// UserRepository manages user persistence. Only the auth service mutates the
// lockout fields; profile edits live outside this package.
type UserRepository interface {
	// Create stores a new user. Duplicate usernames or emails surface as
	// CONFLICT-coded errors.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateLockout writes the failure counter and lockout expiry together.
	UpdateLockout(ctx context.Context, id ulid.ULID, failedLoginCount int, lockoutUntil *time.Time) error

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
