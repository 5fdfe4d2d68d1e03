package logger

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// Audit event types
const (
	EventSignIn         = "sign_in"
	EventLockoutApplied = "lockout_applied"
	EventLockoutCleared = "lockout_cleared"
	EventStepUp         = "step_up_verify"
	EventPasswordChange = "password_change"
	EventPasswordReset  = "password_reset"
	EventQuestionsSetup = "security_questions_setup"
	EventAccessDenied   = "access_denied"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Email         string // masked before it is written
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes security events as structured log lines. It is the
// local fallback when the audit tables are unreachable, so it never fails.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// Log writes one audit line at INFO on success and WARN otherwise
func (al *AuditLogger) Log(ctx context.Context, auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogAuthAttempt logs a sign-in attempt
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	if event.EventType == "" {
		event.EventType = EventSignIn
	}
	al.Log(ctx, "auth", event)
}

// LogLockout logs a lock being applied to an email
func (al *AuditLogger) LogLockout(ctx context.Context, email string, until time.Time, lockoutCount int) {
	al.Log(ctx, "lockout", AuditEvent{
		EventType: EventLockoutApplied,
		Email:     email,
		Success:   false,
		Metadata: map[string]string{
			"locked_until":  until.UTC().Format(time.RFC3339),
			"lockout_count": strconv.Itoa(lockoutCount),
		},
	})
}

// LogPasswordChange logs password change and reset outcomes
func (al *AuditLogger) LogPasswordChange(ctx context.Context, eventType, userID, ipAddress string, success bool, reason string) {
	al.Log(ctx, "password", AuditEvent{
		EventType:     eventType,
		UserID:        userID,
		IPAddress:     ipAddress,
		Success:       success,
		FailureReason: reason,
	})
}

// LogAccountAction logs general account actions
func (al *AuditLogger) LogAccountAction(ctx context.Context, eventType, userID, ipAddress string, metadata map[string]string) {
	al.Log(ctx, "account", AuditEvent{
		EventType: eventType,
		UserID:    userID,
		IPAddress: ipAddress,
		Success:   true,
		Metadata:  metadata,
	})
}
