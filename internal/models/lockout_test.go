package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = LockoutPolicy{
	Threshold:    5,
	BaseDuration: 15 * time.Minute,
	Multiplier:   1.5,
	MaxDuration:  time.Hour,
}

func TestLockoutPolicy_DurationFor(t *testing.T) {
	assert.Equal(t, 15*time.Minute, testPolicy.DurationFor(0))
	assert.Equal(t, 22*time.Minute+30*time.Second, testPolicy.DurationFor(1))
	assert.Equal(t, 33*time.Minute+45*time.Second, testPolicy.DurationFor(2))
	assert.Equal(t, time.Hour, testPolicy.DurationFor(4), "capped at max")
	assert.Equal(t, time.Hour, testPolicy.DurationFor(10000), "overflow capped at max")
}

func TestLockoutPolicy_LocksAtThreshold(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	state := LockoutState{Email: "driver@team.com"}

	for i := 1; i < testPolicy.Threshold; i++ {
		var locked bool
		state, locked = testPolicy.NextOnFailure(state, now)
		require.False(t, locked, "failure %d should not lock", i)
		require.Nil(t, state.LockedUntil)
	}

	state, locked := testPolicy.NextOnFailure(state, now)
	require.True(t, locked)
	assert.Equal(t, 5, state.FailedCount)
	assert.Equal(t, 1, state.LockoutCount)
	require.NotNil(t, state.LockedUntil)
	assert.Equal(t, now.Add(15*time.Minute), *state.LockedUntil)
	require.NotNil(t, state.LockReason)
	assert.Equal(t, LockReasonTooManyFailures, *state.LockReason)
	assert.True(t, state.IsLockedAt(now.Add(14*time.Minute)))
	assert.False(t, state.IsLockedAt(now.Add(15*time.Minute)))
}

func TestLockoutPolicy_ActiveLockNotExtended(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	until := now.Add(10 * time.Minute)
	state := LockoutState{FailedCount: 5, LockoutCount: 1, LockedUntil: &until}

	next, locked := testPolicy.NextOnFailure(state, now)
	assert.False(t, locked)
	assert.Equal(t, 6, next.FailedCount)
	assert.Equal(t, until, *next.LockedUntil)
	assert.Equal(t, 1, next.LockoutCount)
}

func TestLockoutPolicy_RelockAfterExpiryIsLonger(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	state := LockoutState{FailedCount: 5, LockoutCount: 1, LockedUntil: &expired}

	next, locked := testPolicy.NextOnFailure(state, now)
	require.True(t, locked)
	assert.Equal(t, 2, next.LockoutCount)
	assert.Equal(t, now.Add(22*time.Minute+30*time.Second), *next.LockedUntil)
}

func TestNextOnSuccess_ClearsEverything(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	reason := LockReasonTooManyFailures

	for _, failed := range []int{0, 1, 4, 5, 37} {
		state := LockoutState{FailedCount: failed, LockoutCount: 3, LockedUntil: &until, LockReason: &reason, Version: 9}
		next := NextOnSuccess(state, now)

		assert.Zero(t, next.FailedCount)
		assert.Zero(t, next.LockoutCount)
		assert.Nil(t, next.LockedUntil)
		assert.Nil(t, next.LockReason)
		assert.Equal(t, int64(9), next.Version, "version is bumped by the store, not the policy")
	}
}
