package models

import "time"

// Failure reasons recorded on the attempt ledger. Internal only.
const (
	FailureReasonUnknownUser      = "unknown_user"
	FailureReasonInvalidPassword  = "invalid_password"
	FailureReasonAccountLocked    = "account_locked"
	FailureReasonStoreUnavailable = "store_unavailable"
)

// LockReasonTooManyFailures is stored on the lockout state when the threshold is crossed
const LockReasonTooManyFailures = "too many failed attempts"

// LoginAttempt represents a single sign-in submission. Rows are never updated.
type LoginAttempt struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	UserID        *string   `db:"user_id" json:"user_id,omitempty"`
	Success       bool      `db:"success" json:"success"`
	FailureReason *string   `db:"failure_reason" json:"failure_reason,omitempty"`
	IPAddress     string    `db:"ip_address" json:"ip_address"`
	UserAgent     string    `db:"user_agent" json:"user_agent"`
	AttemptedAt   time.Time `db:"attempted_at" json:"attempted_at"`
}

// LockoutState is the per-email counter the lockout engine mutates.
// Version is the compare-and-swap token; every successful write bumps it.
type LockoutState struct {
	Email        string     `json:"email"`
	UserID       *string    `json:"user_id,omitempty"`
	FailedCount  int        `json:"failed_count"`
	LockoutCount int        `json:"lockout_count"` // locks applied since the last successful sign-in
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
	LockReason   *string    `json:"lock_reason,omitempty"`
	Version      int64      `json:"-"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsLockedAt reports whether the lock is in force at the given instant
func (s *LockoutState) IsLockedAt(now time.Time) bool {
	return s != nil && s.LockedUntil != nil && s.LockedUntil.After(now)
}

// LockoutEvent is one applied lock. Rows are never updated, so locks that
// expired or were cleared stay visible.
type LockoutEvent struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	UserID       *string   `json:"user_id,omitempty"`
	LockedUntil  time.Time `json:"locked_until"`
	LockoutCount int       `json:"lockout_count"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}
