// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockoutPolicy_ShouldLockout(t *testing.T) {
	policy := DefaultLockoutPolicy()

	assert.False(t, policy.ShouldLockout(0))
	assert.False(t, policy.ShouldLockout(4))
	assert.True(t, policy.ShouldLockout(5))
	assert.True(t, policy.ShouldLockout(6))
}

func TestLockoutPolicy_Apply_BelowThreshold(t *testing.T) {
	policy := DefaultLockoutPolicy()
	now := time.Now()

	assert.Nil(t, policy.Apply(1, nil, now))
	assert.Nil(t, policy.Apply(4, nil, now))
}

func TestLockoutPolicy_Apply_SetsExpiryAtThreshold(t *testing.T) {
	policy := DefaultLockoutPolicy()
	now := time.Now()

	until := policy.Apply(5, nil, now)
	require.NotNil(t, until)
	assert.Equal(t, now.Add(DefaultLockoutDuration), *until)
}

func TestLockoutPolicy_Apply_ActiveLockoutNotExtended(t *testing.T) {
	policy := DefaultLockoutPolicy()
	now := time.Now()
	existing := now.Add(time.Minute)

	// Failures while already locked must not push the expiry out.
	until := policy.Apply(6, &existing, now)
	require.NotNil(t, until)
	assert.Equal(t, existing, *until)
}

func TestLockoutPolicy_Apply_ExpiredLockoutRearms(t *testing.T) {
	policy := DefaultLockoutPolicy()
	now := time.Now()
	stale := now.Add(-time.Minute)

	// A stale expiry no longer protects the account; crossing the threshold
	// again starts a fresh lockout window.
	until := policy.Apply(10, &stale, now)
	require.NotNil(t, until)
	assert.Equal(t, now.Add(DefaultLockoutDuration), *until)
}

func TestIsLockedOut(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, IsLockedOut(nil, now))
	assert.False(t, IsLockedOut(&past, now))
	assert.False(t, IsLockedOut(&now, now), "expiry exactly at now is not locked")
	assert.True(t, IsLockedOut(&future, now))
}
