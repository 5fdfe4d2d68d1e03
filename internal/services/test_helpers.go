package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	RecordLoginFunc    func(ctx context.Context, id string, at time.Time, ip string) error
	RotateTokenKeyFunc func(ctx context.Context, id string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) RecordLogin(ctx context.Context, id string, at time.Time, ip string) error {
	if m.RecordLoginFunc != nil {
		return m.RecordLoginFunc(ctx, id, at, ip)
	}
	return nil
}

func (m *MockUserRepository) RotateTokenKey(ctx context.Context, id string) error {
	if m.RotateTokenKeyFunc != nil {
		return m.RotateTokenKeyFunc(ctx, id)
	}
	return nil
}

// MockTokenRevocationRepository implements TokenRevocationRepository for testing
type MockTokenRevocationRepository struct {
	RevokeTokenFunc    func(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error
	IsTokenRevokedFunc func(ctx context.Context, jti string) (bool, error)
}

func (m *MockTokenRevocationRepository) RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, jti, userID, tokenType, expiresAt, reason)
	}
	return nil
}

func (m *MockTokenRevocationRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if m.IsTokenRevokedFunc != nil {
		return m.IsTokenRevokedFunc(ctx, jti)
	}
	return false, nil
}

// MockLoginAttemptRepository implements LoginAttemptRepository for testing
type MockLoginAttemptRepository struct {
	RecordAttemptFunc func(ctx context.Context, attempt *models.LoginAttempt) error
	ListAttemptsFunc  func(ctx context.Context, opts models.ListOptions) ([]*models.LoginAttempt, error)
}

func (m *MockLoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockLoginAttemptRepository) ListAttempts(ctx context.Context, opts models.ListOptions) ([]*models.LoginAttempt, error) {
	if m.ListAttemptsFunc != nil {
		return m.ListAttemptsFunc(ctx, opts)
	}
	return []*models.LoginAttempt{}, nil
}

// MockLockoutRepository implements LockoutRepository for testing
type MockLockoutRepository struct {
	GetStateFunc            func(ctx context.Context, email string) (*models.LockoutState, error)
	GetOrCreateStateFunc    func(ctx context.Context, email string, userID *string) (*models.LockoutState, error)
	CompareAndSwapStateFunc func(ctx context.Context, next *models.LockoutState, expectedVersion int64) error
	ListLockedFunc          func(ctx context.Context, now time.Time, opts models.ListOptions) ([]*models.LockoutState, error)
}

func (m *MockLockoutRepository) GetState(ctx context.Context, email string) (*models.LockoutState, error) {
	if m.GetStateFunc != nil {
		return m.GetStateFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockLockoutRepository) GetOrCreateState(ctx context.Context, email string, userID *string) (*models.LockoutState, error) {
	if m.GetOrCreateStateFunc != nil {
		return m.GetOrCreateStateFunc(ctx, email, userID)
	}
	return &models.LockoutState{Email: email, UserID: userID}, nil
}

func (m *MockLockoutRepository) CompareAndSwapState(ctx context.Context, next *models.LockoutState, expectedVersion int64) error {
	if m.CompareAndSwapStateFunc != nil {
		return m.CompareAndSwapStateFunc(ctx, next, expectedVersion)
	}
	return nil
}

func (m *MockLockoutRepository) ListLocked(ctx context.Context, now time.Time, opts models.ListOptions) ([]*models.LockoutState, error) {
	if m.ListLockedFunc != nil {
		return m.ListLockedFunc(ctx, now, opts)
	}
	return []*models.LockoutState{}, nil
}

// MockLockoutEventRepository implements LockoutEventRepository for testing
type MockLockoutEventRepository struct {
	RecordLockoutEventFunc func(ctx context.Context, e *models.LockoutEvent) error
	ListLockoutEventsFunc  func(ctx context.Context, opts models.ListOptions) ([]*models.LockoutEvent, error)
}

func (m *MockLockoutEventRepository) RecordLockoutEvent(ctx context.Context, e *models.LockoutEvent) error {
	if m.RecordLockoutEventFunc != nil {
		return m.RecordLockoutEventFunc(ctx, e)
	}
	return nil
}

func (m *MockLockoutEventRepository) ListLockoutEvents(ctx context.Context, opts models.ListOptions) ([]*models.LockoutEvent, error) {
	if m.ListLockoutEventsFunc != nil {
		return m.ListLockoutEventsFunc(ctx, opts)
	}
	return []*models.LockoutEvent{}, nil
}

// MockSecurityQuestionRepository implements SecurityQuestionRepository for testing
type MockSecurityQuestionRepository struct {
	GetQuestionsFunc    func(ctx context.Context, userID string) (*models.SecurityQuestionSet, error)
	UpsertQuestionsFunc func(ctx context.Context, set *models.SecurityQuestionSet) error
}

func (m *MockSecurityQuestionRepository) GetQuestions(ctx context.Context, userID string) (*models.SecurityQuestionSet, error) {
	if m.GetQuestionsFunc != nil {
		return m.GetQuestionsFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockSecurityQuestionRepository) UpsertQuestions(ctx context.Context, set *models.SecurityQuestionSet) error {
	if m.UpsertQuestionsFunc != nil {
		return m.UpsertQuestionsFunc(ctx, set)
	}
	return nil
}

// MockFailureRepository implements FailureRepository for testing
type MockFailureRepository struct {
	CreateAccessFailureFunc func(ctx context.Context, f *models.AccessFailure) error
	CreateInputFailureFunc  func(ctx context.Context, f *models.InputFailure) error
	ListAccessFailuresFunc  func(ctx context.Context, opts models.ListOptions) ([]*models.AccessFailure, error)
	ListInputFailuresFunc   func(ctx context.Context, opts models.ListOptions) ([]*models.InputFailure, error)
}

func (m *MockFailureRepository) CreateAccessFailure(ctx context.Context, f *models.AccessFailure) error {
	if m.CreateAccessFailureFunc != nil {
		return m.CreateAccessFailureFunc(ctx, f)
	}
	return nil
}

func (m *MockFailureRepository) CreateInputFailure(ctx context.Context, f *models.InputFailure) error {
	if m.CreateInputFailureFunc != nil {
		return m.CreateInputFailureFunc(ctx, f)
	}
	return nil
}

func (m *MockFailureRepository) ListAccessFailures(ctx context.Context, opts models.ListOptions) ([]*models.AccessFailure, error) {
	if m.ListAccessFailuresFunc != nil {
		return m.ListAccessFailuresFunc(ctx, opts)
	}
	return []*models.AccessFailure{}, nil
}

func (m *MockFailureRepository) ListInputFailures(ctx context.Context, opts models.ListOptions) ([]*models.InputFailure, error) {
	if m.ListInputFailuresFunc != nil {
		return m.ListInputFailuresFunc(ctx, opts)
	}
	return []*models.InputFailure{}, nil
}

// MockMailSender records every message handed to SES
type MockMailSender struct {
	mu   sync.Mutex
	Sent []*ses.SendEmailInput
	Err  error
}

func (m *MockMailSender) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Sent = append(m.Sent, params)
	return &ses.SendEmailOutput{MessageId: aws.String("test-message")}, nil
}

func (m *MockMailSender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// recordingNotifier captures notifications without SES
type recordingNotifier struct {
	mu       sync.Mutex
	lockouts []string
	changed  []string
}

func (n *recordingNotifier) NotifyLockout(_ context.Context, email string, _ time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lockouts = append(n.lockouts, email)
}

func (n *recordingNotifier) NotifyPasswordChanged(_ context.Context, email string, _ time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, email)
}

// testClock is a settable time source shared by services and stores
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func defaultTestPolicy() models.LockoutPolicy {
	return models.LockoutPolicy{
		Threshold:    5,
		BaseDuration: 15 * time.Minute,
		Multiplier:   1.5,
		MaxDuration:  time.Hour,
	}
}

// NewTestUser creates a test user with the given ID, email, and name
func NewTestUser(id, email, name string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:        id,
		Email:     email,
		Name:      name,
		Role:      models.RoleDriver,
		TokenKey:  "test-token-key",
		CreatedAt: now,
		UpdatedAt: now,
	}
}
