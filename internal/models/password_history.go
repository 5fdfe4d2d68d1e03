package models

import "time"

// PasswordHistoryEntry is a retired password hash. Append-only.
type PasswordHistoryEntry struct {
	ID           string
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
}

// PasswordStatus reports whether the minimum-age rule currently allows a change
type PasswordStatus struct {
	CanChange         bool       `json:"can_change"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	NextChangeAt      *time.Time `json:"next_change_at,omitempty"`
}
