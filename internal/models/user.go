package models

import (
	"strings"
	"time"
)

// User is the identity record held by the credential store
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Name              string
	Role              Role
	TeamID            *string
	CarNumber         *int
	TokenKey          string // Per-user secret for composite token signing
	PasswordChangedAt *time.Time
	LastLoginAt       *time.Time
	LastLoginIP       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LoginInfo is what the user sees about their previous sign-in
type LoginInfo struct {
	PreviousLoginAt      *time.Time `json:"previous_login_at,omitempty"`
	PreviousLoginIP      *string    `json:"previous_login_ip,omitempty"`
	FailedSinceLastLogin int        `json:"failed_since_last_login"`
}

// NormalizeEmail is the canonical key for identities and lockout state
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
