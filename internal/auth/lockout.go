// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package auth

import (
	"time"
)

// Lockout defaults for login failures.
const (
	// DefaultMaxLoginFails is the number of bad-password failures that
	// triggers a lockout.
	DefaultMaxLoginFails = 5

	// DefaultLockoutDuration is the time an account stays locked after the
	// failure threshold is crossed.
	DefaultLockoutDuration = 3 * time.Minute
)

// LockoutPolicy decides when repeated login failures lock an account.
// All methods are pure functions of their inputs.
type LockoutPolicy struct {
	MaxFails     int
	LockDuration time.Duration
}

// DefaultLockoutPolicy returns the standard login lockout policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxFails:     DefaultMaxLoginFails,
		LockDuration: DefaultLockoutDuration,
	}
}

// ShouldLockout returns true if the failure count has reached the threshold.
func (p LockoutPolicy) ShouldLockout(failures int) bool {
	return failures >= p.MaxFails
}

// NextExpiry returns the lockout expiry for a lockout starting at now.
func (p LockoutPolicy) NextExpiry(now time.Time) time.Time {
	return now.Add(p.LockDuration)
}

// Apply returns the lockout expiry to set after a failure, or the current
// value unchanged. A new expiry is set only when the threshold is crossed and
// no lockout is currently active: an already-locked account does not get its
// clock reset by further failures.
func (p LockoutPolicy) Apply(failures int, lockoutUntil *time.Time, now time.Time) *time.Time {
	if !p.ShouldLockout(failures) {
		return lockoutUntil
	}
	if IsLockedOut(lockoutUntil, now) {
		return lockoutUntil
	}
	expiry := p.NextExpiry(now)
	return &expiry
}

// IsLockedOut returns true if the lockout expiry is present and in the future.
func IsLockedOut(lockoutUntil *time.Time, now time.Time) bool {
	return lockoutUntil != nil && lockoutUntil.After(now)
}
