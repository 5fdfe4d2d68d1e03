package models

import (
	"math"
	"time"
)

// LockoutPolicy computes counter transitions. It holds no state; the store
// applies the result with a compare-and-swap on LockoutState.Version.
type LockoutPolicy struct {
	Threshold    int
	BaseDuration time.Duration
	Multiplier   float64
	MaxDuration  time.Duration
}

// DurationFor returns the length of the lock applied after priorLocks
// earlier locks without an intervening success.
func (p LockoutPolicy) DurationFor(priorLocks int) time.Duration {
	d := float64(p.BaseDuration) * math.Pow(p.Multiplier, float64(priorLocks))
	if p.MaxDuration > 0 && (d > float64(p.MaxDuration) || math.IsInf(d, 1)) {
		return p.MaxDuration
	}
	return time.Duration(d)
}

// NextOnFailure returns the state after one more failed attempt and whether
// this failure applied a new lock. A lock already in force is left as is.
// Once the counter has reached the threshold, every further failure after
// the lock expires applies a new, longer lock.
func (p LockoutPolicy) NextOnFailure(s LockoutState, now time.Time) (LockoutState, bool) {
	next := s
	next.FailedCount++
	next.UpdatedAt = now

	if s.IsLockedAt(now) || next.FailedCount < p.Threshold {
		return next, false
	}

	until := now.Add(p.DurationFor(s.LockoutCount))
	reason := LockReasonTooManyFailures
	next.LockedUntil = &until
	next.LockReason = &reason
	next.LockoutCount++
	return next, true
}

// NextOnSuccess clears the counter, the lock and the progression
func NextOnSuccess(s LockoutState, now time.Time) LockoutState {
	next := s
	next.FailedCount = 0
	next.LockoutCount = 0
	next.LockedUntil = nil
	next.LockReason = nil
	next.UpdatedAt = now
	return next
}
