package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	pkgauth "github.com/BradenHooton/pitwall/pkg/auth"
	"github.com/BradenHooton/pitwall/pkg/logger"
)

// UserLookup fetches identities for the rotation flows
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// PasswordHistoryRepository reads retired hashes, newest first
type PasswordHistoryRepository interface {
	RecentPasswords(ctx context.Context, userID string, n int) ([]*models.PasswordHistoryEntry, error)
}

// PasswordRotator swaps the live hash and appends the retired one to history
// atomically, conditional on the live hash still being retiredHash.
type PasswordRotator interface {
	RotatePassword(ctx context.Context, userID, retiredHash, newHash string, changedAt time.Time) error
}

// StepUpVerifier checks the secondary knowledge factor
type StepUpVerifier interface {
	Challenge(ctx context.Context, userID string) (*models.SecurityChallenge, error)
	Verify(ctx context.Context, userID, a1, a2 string) error
}

// Reauthenticator confirms the signed-in user still knows the live password
type Reauthenticator interface {
	Reauthenticate(ctx context.Context, user *models.User, password, ipAddress, userAgent string) error
}

// PasswordNotifier is told after a successful rotation
type PasswordNotifier interface {
	NotifyPasswordChanged(ctx context.Context, email string, at time.Time)
}

type PasswordConfig struct {
	MinAge       time.Duration // minimum time between changes
	HistoryDepth int           // retired hashes checked for reuse
}

// ChangePasswordInput is the authenticated rotation request
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
	Answer1         string
	Answer2         string
	IPAddress       string
	UserAgent       string
}

// ResetPasswordInput is the signed-out rotation request
type ResetPasswordInput struct {
	Email       string
	NewPassword string
	Answer1     string
	Answer2     string
	IPAddress   string
	UserAgent   string
}

// PasswordService enforces the rotation policy: minimum age, complexity and
// reuse of recent passwords.
type PasswordService struct {
	users       UserLookup
	history     PasswordHistoryRepository
	rotator     PasswordRotator
	stepUp      StepUpVerifier
	reauth      Reauthenticator
	notifier    PasswordNotifier
	config      PasswordConfig
	logger      *slog.Logger
	auditLogger *logger.AuditLogger
	now         func() time.Time
}

func NewPasswordService(
	users UserLookup,
	history PasswordHistoryRepository,
	rotator PasswordRotator,
	stepUp StepUpVerifier,
	reauth Reauthenticator,
	config PasswordConfig,
	logger *slog.Logger,
	auditLogger *logger.AuditLogger,
) *PasswordService {
	return &PasswordService{
		users:       users,
		history:     history,
		rotator:     rotator,
		stepUp:      stepUp,
		reauth:      reauth,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier enables password-changed notifications
func (s *PasswordService) SetNotifier(n PasswordNotifier) {
	s.notifier = n
}

// CanChange is false while the current password is younger than the minimum age
func (s *PasswordService) CanChange(user *models.User) bool {
	if user.PasswordChangedAt == nil {
		return true
	}
	return s.now().Sub(*user.PasswordChangedAt) >= s.config.MinAge
}

func (s *PasswordService) Status(user *models.User) models.PasswordStatus {
	status := models.PasswordStatus{
		CanChange:         s.CanChange(user),
		PasswordChangedAt: user.PasswordChangedAt,
	}
	if !status.CanChange {
		next := user.PasswordChangedAt.Add(s.config.MinAge)
		status.NextChangeAt = &next
	}
	return status
}

// StatusByID loads the user and reports its rotation status
func (s *PasswordService) StatusByID(ctx context.Context, userID string) (models.PasswordStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.PasswordStatus{}, err
	}
	return s.Status(user), nil
}

func (s *PasswordService) ValidateNewPassword(candidate string) error {
	return pkgauth.ValidatePassword(candidate)
}

// CheckHistory rejects the live password and the most recent retired ones.
// A failed history lookup is logged and the candidate is allowed.
func (s *PasswordService) CheckHistory(ctx context.Context, user *models.User, candidate string) error {
	if pkgauth.PasswordMatches(user.PasswordHash, candidate) {
		return models.ErrPasswordReused
	}

	entries, err := s.history.RecentPasswords(ctx, user.ID, s.config.HistoryDepth)
	if err != nil {
		// Fail open: history is advisory.
		s.logger.WarnContext(ctx, "password history lookup failed, skipping reuse check",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return nil
	}

	for _, e := range entries {
		if pkgauth.PasswordMatches(e.PasswordHash, candidate) {
			return models.ErrPasswordReused
		}
	}
	return nil
}

// Commit installs newPassword and retires the current hash
func (s *PasswordService) Commit(ctx context.Context, user *models.User, newPassword string) error {
	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	if err := s.rotator.RotatePassword(ctx, user.ID, user.PasswordHash, hash, now); err != nil {
		return fmt.Errorf("failed to rotate password: %w", err)
	}

	user.PasswordHash = hash
	user.PasswordChangedAt = &now

	if s.notifier != nil {
		s.notifier.NotifyPasswordChanged(ctx, user.Email, now)
	}
	return nil
}

// ChangePassword runs the authenticated flow. Nothing is written unless
// every check passes.
func (s *PasswordService) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return err
	}

	err = s.rotate(ctx, user, in.NewPassword, in.Answer1, in.Answer2, func() error {
		return s.reauth.Reauthenticate(ctx, user, in.CurrentPassword, in.IPAddress, in.UserAgent)
	})
	s.audit(ctx, logger.EventPasswordChange, user.ID, in.IPAddress, err)
	return err
}

// ResetPassword runs the signed-out flow by email
func (s *PasswordService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	user, err := s.users.GetByEmail(ctx, models.NormalizeEmail(in.Email))
	if errors.Is(err, models.ErrNotFound) {
		s.auditLogger.LogPasswordChange(ctx, logger.EventPasswordReset, "", in.IPAddress, false, "unknown email")
		return models.ErrVerificationFailed
	}
	if err != nil {
		return storeUnavailable("user lookup", err)
	}

	err = s.rotate(ctx, user, in.NewPassword, in.Answer1, in.Answer2, nil)
	s.audit(ctx, logger.EventPasswordReset, user.ID, in.IPAddress, err)
	return err
}

// ResetChallenge returns the questions for email. Unknown emails look the
// same as accounts without questions.
func (s *PasswordService) ResetChallenge(ctx context.Context, email string) (*models.SecurityChallenge, error) {
	user, err := s.users.GetByEmail(ctx, models.NormalizeEmail(email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNotConfigured
	}
	if err != nil {
		return nil, storeUnavailable("user lookup", err)
	}
	return s.stepUp.Challenge(ctx, user.ID)
}

func (s *PasswordService) rotate(ctx context.Context, user *models.User, newPassword, a1, a2 string, reauth func() error) error {
	if !s.CanChange(user) {
		return models.ErrTooSoon
	}
	if reauth != nil {
		if err := reauth(); err != nil {
			return err
		}
	}
	if err := s.stepUp.Verify(ctx, user.ID, a1, a2); err != nil {
		return err
	}
	if err := s.ValidateNewPassword(newPassword); err != nil {
		return err
	}
	if err := s.CheckHistory(ctx, user, newPassword); err != nil {
		return err
	}
	return s.Commit(ctx, user, newPassword)
}

func (s *PasswordService) audit(ctx context.Context, eventType, userID, ip string, err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	s.auditLogger.LogPasswordChange(ctx, eventType, userID, ip, err == nil, reason)
}
