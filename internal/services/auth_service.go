package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/pitwall/internal/auth"
	"github.com/BradenHooton/pitwall/internal/models"
	pkgauth "github.com/BradenHooton/pitwall/pkg/auth"
	pkglogger "github.com/BradenHooton/pitwall/pkg/logger"
)

// UserRepository is the credential store
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	RecordLogin(ctx context.Context, id string, at time.Time, ip string) error
	RotateTokenKey(ctx context.Context, id string) error
}

// TokenRevocationRepository defines the interface for token revocation operations
type TokenRevocationRepository interface {
	RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// QuestionSetter stores a user's security questions
type QuestionSetter interface {
	Setup(ctx context.Context, userID, q1, a1, q2, a2 string) error
}

// IdentityProvider verifies a password against the credential store
type IdentityProvider interface {
	VerifyPassword(ctx context.Context, email, password string) (*models.User, error)
}

type AuthConfig struct {
	StoreTimeout time.Duration // bound on lockout and credential lookups during sign-in
}

// SignInInput is one sign-in submission
type SignInInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// SignUpInput creates an identity together with its security questions
type SignUpInput struct {
	Email     string
	Password  string
	Name      string
	TeamID    *string
	CarNumber *int
	Question1 string
	Answer1   string
	Question2 string
	Answer2   string
	IPAddress string
	UserAgent string
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	revokeRepo  TokenRevocationRepository
	lockout     *LockoutService
	questions   QuestionSetter
	tm          *auth.TokenManager
	config      AuthConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo UserRepository,
	revokeRepo TokenRevocationRepository,
	lockout *LockoutService,
	questions QuestionSetter,
	tm *auth.TokenManager,
	config AuthConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 3 * time.Second
	}
	return &AuthService{
		repo:        repo,
		revokeRepo:  revokeRepo,
		lockout:     lockout,
		questions:   questions,
		tm:          tm,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID           string              `json:"id"`
	Email        string              `json:"email"`
	Name         string              `json:"name"`
	Role         models.Role         `json:"role"`
	Capabilities []models.Capability `json:"capabilities"`
	TeamID       *string             `json:"team_id,omitempty"`
	CarNumber    *int                `json:"car_number,omitempty"`
	CreatedAt    string              `json:"created_at"`
}

// AuthResponse represents the response from sign-in, sign-up and refresh
type AuthResponse struct {
	*models.TokenPair
	User                *UserResponse     `json:"user"`
	LastLogin           *models.LoginInfo `json:"last_login,omitempty"`
	QuestionsConfigured *bool             `json:"security_questions_configured,omitempty"`
}

func NewUserResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Capabilities: u.Role.Capabilities(),
		TeamID:       u.TeamID,
		CarNumber:    u.CarNumber,
		CreatedAt:    u.CreatedAt.Format(time.RFC3339),
	}
}

// SignIn checks the lockout state, verifies the password, records the
// attempt and issues tokens. Lockout and credential lookups fail closed.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*models.SignInResult, error) {
	email := models.NormalizeEmail(in.Email)
	attempt := AttemptInput{Email: email, IPAddress: in.IPAddress, UserAgent: in.UserAgent}

	sctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	state, err := s.lockout.State(sctx, email)
	if err != nil {
		s.logger.ErrorContext(ctx, "lockout check failed, denying sign in",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		attempt.Reason = models.FailureReasonStoreUnavailable
		s.lockout.RecordUncounted(ctx, attempt)
		s.logAttempt(ctx, attempt, "")
		return nil, models.ErrStoreUnavailable
	}

	if state.IsLockedAt(s.now()) {
		attempt.UserID = state.UserID
		s.lockout.RecordLockedRefusal(ctx, attempt)
		attempt.Reason = models.FailureReasonAccountLocked
		s.logAttempt(ctx, attempt, "")
		return nil, models.ErrLockedOut
	}

	user, reason, err := s.verify(sctx, email, in.Password)
	if err != nil {
		if user != nil {
			attempt.UserID = &user.ID
		}
		attempt.Reason = reason
		s.logAttempt(ctx, attempt, "")

		if errors.Is(err, models.ErrStoreUnavailable) {
			s.lockout.RecordUncounted(ctx, attempt)
			return nil, err
		}

		if _, lerr := s.lockout.RecordAttempt(sctx, attempt); lerr != nil {
			s.logger.ErrorContext(ctx, "failed to update lockout counter",
				slog.String("email", pkglogger.SanitizedEmail(email)),
				slog.Any("error", lerr))
		}
		return nil, models.ErrInvalidCredentials
	}

	attempt.UserID = &user.ID
	attempt.Success = true
	if _, lerr := s.lockout.RecordAttempt(sctx, attempt); lerr != nil {
		// Concurrent failures locked the account while the password was checked.
		if errors.Is(lerr, models.ErrLockedOut) {
			attempt.Success = false
			attempt.Reason = models.FailureReasonAccountLocked
			s.logAttempt(ctx, attempt, "")
			return nil, models.ErrLockedOut
		}
		s.logger.ErrorContext(ctx, "failed to reset lockout counter",
			slog.String("user_id", user.ID),
			slog.Any("error", lerr))
	}
	s.logAttempt(ctx, attempt, user.ID)

	info := models.LoginInfo{
		PreviousLoginAt:      user.LastLoginAt,
		PreviousLoginIP:      user.LastLoginIP,
		FailedSinceLastLogin: state.FailedCount,
	}

	if err := s.repo.RecordLogin(ctx, user.ID, s.now(), in.IPAddress); err != nil {
		s.logger.ErrorContext(ctx, "failed to record last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	tokens, err := s.tm.IssuePair(user)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue tokens", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &models.SignInResult{User: user, Tokens: tokens, LoginInfo: info}, nil
}

// VerifyPassword returns the user when password matches. Unknown emails and
// wrong passwords both yield models.ErrInvalidCredentials.
func (s *AuthService) VerifyPassword(ctx context.Context, email, password string) (*models.User, error) {
	user, _, err := s.verify(ctx, models.NormalizeEmail(email), password)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// verify returns the user (when found) and the ledger reason on failure
func (s *AuthService) verify(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn a comparison so unknown emails cost the same as wrong passwords.
			pkgauth.PasswordMatches(s.dummyPasswordHash(), password)
			return nil, models.FailureReasonUnknownUser, models.ErrInvalidCredentials
		}
		return nil, models.FailureReasonStoreUnavailable, storeUnavailable("credential lookup", err)
	}

	if !pkgauth.PasswordMatches(user.PasswordHash, password) {
		return user, models.FailureReasonInvalidPassword, models.ErrInvalidCredentials
	}
	return user, "", nil
}

func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := pkgauth.HashPassword("pitwall-timing-equalizer")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

// Reauthenticate confirms the signed-in user's current password before a
// sensitive change. Wrong passwords count toward the lockout.
func (s *AuthService) Reauthenticate(ctx context.Context, user *models.User, password, ipAddress, userAgent string) error {
	attempt := AttemptInput{
		Email:     user.Email,
		UserID:    &user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}

	locked, _, err := s.lockout.IsLocked(ctx, user.Email)
	if err != nil {
		return err
	}
	if locked {
		s.lockout.RecordLockedRefusal(ctx, attempt)
		return models.ErrLockedOut
	}

	if pkgauth.PasswordMatches(user.PasswordHash, password) {
		return nil
	}

	attempt.Reason = models.FailureReasonInvalidPassword
	if _, err := s.lockout.RecordAttempt(ctx, attempt); err != nil {
		s.logger.ErrorContext(ctx, "failed to update lockout counter",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
	return models.ErrInvalidCredentials
}

// SignUp creates a driver account with its security questions and signs it in.
// The questions are validated before anything is written.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*models.SignInResult, bool, error) {
	email := models.NormalizeEmail(in.Email)

	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, false, err
	}
	if err := models.ValidateQuestions(in.Question1, in.Answer1, in.Question2, in.Answer2); err != nil {
		return nil, false, err
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		return nil, false, models.ErrInternalServer
	}

	user, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         models.RoleDriver,
		TeamID:       in.TeamID,
		CarNumber:    in.CarNumber,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, false, models.ErrConflict
		}
		s.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		return nil, false, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction(ctx, "sign_up", user.ID, in.IPAddress, nil)

	// The account exists from here on. A failed question write leaves it
	// usable; the user configures questions after signing in.
	configured := true
	if err := s.questions.Setup(ctx, user.ID, in.Question1, in.Answer1, in.Question2, in.Answer2); err != nil {
		configured = false
		s.logger.ErrorContext(ctx, "failed to store security questions at sign up",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	tokens, err := s.tm.IssuePair(user)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue tokens", slog.Any("error", err))
		return nil, configured, models.ErrInternalServer
	}

	return &models.SignInResult{User: user, Tokens: tokens}, configured, nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is revoked so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.SignInResult, error) {
	claims, err := s.tm.ValidateToken(ctx, refreshToken)
	if err != nil || claims.Type != models.TokenTypeRefresh {
		return nil, models.ErrUnauthorized
	}

	revoked, err := s.revokeRepo.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check token revocation", slog.Any("error", err))
		return nil, models.ErrStoreUnavailable
	}
	if revoked {
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrInternalServer
	}

	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, user.ID, models.TokenTypeRefresh, claims.ExpiresAt.Time, "refreshed"); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	tokens, err := s.tm.IssuePair(user)
	if err != nil {
		return nil, models.ErrInternalServer
	}
	return &models.SignInResult{User: user, Tokens: tokens}, nil
}

// SignOut revokes the presented access token and rotates the user's token
// key, which ends every other session as well.
func (s *AuthService) SignOut(ctx context.Context, claims *models.TokenClaims) error {
	if claims.ExpiresAt != nil {
		if err := s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, claims.Type, claims.ExpiresAt.Time, "sign_out"); err != nil {
			s.logger.ErrorContext(ctx, "failed to revoke token", slog.Any("error", err))
			return fmt.Errorf("failed to revoke token: %w", err)
		}
	}

	if err := s.repo.RotateTokenKey(ctx, claims.UserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to rotate token key",
			slog.String("user_id", claims.UserID),
			slog.Any("error", err))
		return fmt.Errorf("failed to rotate token key: %w", err)
	}

	s.auditLogger.LogAccountAction(ctx, "sign_out", claims.UserID, "", nil)
	return nil
}

// Me returns the signed-in identity
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// EnsureAdministrator creates the bootstrap administrator if the email is free
func (s *AuthService) EnsureAdministrator(ctx context.Context, email, password, name string) error {
	email = models.NormalizeEmail(email)

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to look up administrator: %w", err)
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return fmt.Errorf("administrator password: %w", err)
	}
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return err
	}

	user, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         models.RoleAdministrator,
	})
	if err != nil && !errors.Is(err, models.ErrConflict) {
		return fmt.Errorf("failed to create administrator: %w", err)
	}
	if user != nil {
		s.logger.InfoContext(ctx, "administrator account created", slog.String("user_id", user.ID))
	}
	return nil
}

func (s *AuthService) logAttempt(ctx context.Context, in AttemptInput, userID string) {
	s.auditLogger.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventSignIn,
		UserID:        userID,
		Email:         in.Email,
		IPAddress:     in.IPAddress,
		UserAgent:     in.UserAgent,
		Success:       in.Success,
		FailureReason: in.Reason,
	})
}
