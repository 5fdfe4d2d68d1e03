package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Input failure classes
const (
	InputFailureEmail      = "email_error"
	InputFailurePassword   = "password_error"
	InputFailureValidation = "validation_error"
)

// Flows an input failure can be attributed to
const (
	FlowSignIn         = "sign_in"
	FlowSignUp         = "sign_up"
	FlowPasswordReset  = "password_reset"
	FlowPasswordChange = "password_change"
	FlowQuestions      = "security_questions"
)

// AccessFailure records an authorization denial on a protected route
type AccessFailure struct {
	ID         string          `json:"id"`
	UserID     *string         `json:"user_id,omitempty"`
	Email      *string         `json:"email,omitempty"`
	Role       *string         `json:"role,omitempty"`
	Resource   string          `json:"resource"` // route pattern or capability
	Action     string          `json:"action"`   // HTTP method
	Reason     string          `json:"reason"`
	IPAddress  string          `json:"ip_address"`
	UserAgent  string          `json:"user_agent"`
	Metadata   FailureMetadata `json:"metadata,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// InputFailure records a rejected submission during an auth flow
type InputFailure struct {
	ID          string          `json:"id"`
	Email       *string         `json:"email,omitempty"`
	FailureType string          `json:"failure_type"`
	Flow        string          `json:"flow"`
	Field       string          `json:"field,omitempty"`
	Message     string          `json:"message"`
	IPAddress   string          `json:"ip_address"`
	UserAgent   string          `json:"user_agent"`
	Metadata    FailureMetadata `json:"metadata,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// ClassifyInputField maps a rejected field name onto an input failure class
func ClassifyInputField(field string) string {
	switch field {
	case "email", "Email":
		return InputFailureEmail
	case "password", "Password", "new_password", "NewPassword", "current_password", "CurrentPassword":
		return InputFailurePassword
	default:
		return InputFailureValidation
	}
}

// FailureMetadata holds additional context stored as JSONB
type FailureMetadata map[string]any

// Scan implements sql.Scanner for JSONB
func (m *FailureMetadata) Scan(value any) error {
	if value == nil {
		*m = make(FailureMetadata)
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrBadRequest
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*m = FailureMetadata(decoded)
	return nil
}

// Value implements driver.Valuer for JSONB
func (m FailureMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(map[string]any(m))
}

// ListOptions pages the audit views, newest first
type ListOptions struct {
	Email  string // exact normalized email, empty for all
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Normalized clamps the paging values into range
func (o ListOptions) Normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
