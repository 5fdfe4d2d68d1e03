package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/internal/repositories/memory"
	pkgauth "github.com/BradenHooton/pitwall/pkg/auth"
	pkglogger "github.com/BradenHooton/pitwall/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reauthFunc func(ctx context.Context, user *models.User, password, ip, ua string) error

func (f reauthFunc) Reauthenticate(ctx context.Context, user *models.User, password, ip, ua string) error {
	return f(ctx, user, password, ip, ua)
}

// passwordFixture wires a PasswordService to the memory store with one user
// whose password is old enough to change.
type passwordFixture struct {
	svc       *PasswordService
	questions *SecurityQuestionService
	store     *memory.Store
	clock     *testClock
	user      *models.User
	notifier  *recordingNotifier
}

const initialPassword = "Box-Box-2024!"

func newPasswordFixture(t *testing.T) *passwordFixture {
	t.Helper()
	clock := newTestClock()
	store := memory.NewStore()
	store.SetClock(clock.Now)

	hash, err := pkgauth.HashPassword(initialPassword)
	require.NoError(t, err)
	user, err := store.Create(context.Background(), &models.User{
		Email:        "driver@example.com",
		PasswordHash: hash,
		Name:         "Test Driver",
	})
	require.NoError(t, err)

	logger := newTestLogger()
	audit := pkglogger.NewAuditLogger(logger)
	questions := NewSecurityQuestionService(store, logger, audit)
	require.NoError(t, questions.Setup(context.Background(), user.ID, questionPet, "Rex", questionCity, "Monaco"))

	reauth := reauthFunc(func(_ context.Context, u *models.User, password, _, _ string) error {
		if !pkgauth.PasswordMatches(u.PasswordHash, password) {
			return models.ErrInvalidCredentials
		}
		return nil
	})

	svc := NewPasswordService(store, store, store, questions, reauth,
		PasswordConfig{MinAge: 24 * time.Hour, HistoryDepth: 3}, logger, audit)
	svc.now = clock.Now
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)

	clock.Advance(48 * time.Hour)

	return &passwordFixture{svc: svc, questions: questions, store: store, clock: clock, user: user, notifier: notifier}
}

func (f *passwordFixture) reload(t *testing.T) *models.User {
	t.Helper()
	u, err := f.store.GetByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	return u
}

func TestPasswordService_CanChangeBoundary(t *testing.T) {
	clock := newTestClock()
	svc := &PasswordService{config: PasswordConfig{MinAge: 24 * time.Hour}, now: clock.Now}

	changed := clock.Now()
	user := &models.User{PasswordChangedAt: &changed}

	clock.Advance(24*time.Hour - time.Nanosecond)
	assert.False(t, svc.CanChange(user))
	status := svc.Status(user)
	require.NotNil(t, status.NextChangeAt)
	assert.Equal(t, changed.Add(24*time.Hour), *status.NextChangeAt)

	clock.Advance(time.Nanosecond)
	assert.True(t, svc.CanChange(user))
	assert.Nil(t, svc.Status(user).NextChangeAt)

	assert.True(t, svc.CanChange(&models.User{}))
}

func TestPasswordService_ValidateNewPassword(t *testing.T) {
	svc := &PasswordService{}

	tests := []struct {
		candidate string
		wantErr   error
	}{
		{"Aa1!aaaa", nil},
		{"Aa1!aaa", models.ErrPasswordTooShort},
		{"Aa1!" + strings.Repeat("a", 61), models.ErrPasswordTooLong},
		{"aa1!aaaa", models.ErrWeakComplexity},
		{"AA1!AAAA", models.ErrWeakComplexity},
		{"Aaa!aaaa", models.ErrWeakComplexity},
		{"Aa1aaaaa", models.ErrWeakComplexity},
		{"Aa1_aaaa", models.ErrWeakComplexity},
	}

	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			err := svc.ValidateNewPassword(tt.candidate)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestPasswordService_HistoryWindow(t *testing.T) {
	f := newPasswordFixture(t)
	ctx := context.Background()

	generations := []string{"Lap-Two-22!", "Lap-Three-33!", "Lap-Four-44!", "Lap-Five-55!"}
	for _, p := range generations {
		require.NoError(t, f.svc.Commit(ctx, f.user, p))
	}
	assert.Equal(t, 4, f.store.HistoryLen(f.user.ID))

	// Live password and the three most recent retired ones are refused.
	for _, p := range []string{"Lap-Five-55!", "Lap-Four-44!", "Lap-Three-33!", "Lap-Two-22!"} {
		assert.ErrorIs(t, f.svc.CheckHistory(ctx, f.user, p), models.ErrPasswordReused, p)
	}

	// The original password has aged out of the window.
	assert.NoError(t, f.svc.CheckHistory(ctx, f.user, initialPassword))
}

func TestPasswordService_HistoryLookupFailsOpen(t *testing.T) {
	user := &models.User{ID: "user-1", PasswordHash: "$2a$12$invalid"}
	svc := &PasswordService{
		history: historyFunc(func(ctx context.Context, userID string, n int) ([]*models.PasswordHistoryEntry, error) {
			return nil, errors.New("timeout")
		}),
		config: PasswordConfig{HistoryDepth: 3},
		logger: newTestLogger(),
	}

	assert.NoError(t, svc.CheckHistory(context.Background(), user, "Fresh-Tyres-1!"))
}

type historyFunc func(ctx context.Context, userID string, n int) ([]*models.PasswordHistoryEntry, error)

func (f historyFunc) RecentPasswords(ctx context.Context, userID string, n int) ([]*models.PasswordHistoryEntry, error) {
	return f(ctx, userID, n)
}

func TestPasswordService_ChangePassword(t *testing.T) {
	f := newPasswordFixture(t)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, ChangePasswordInput{
		UserID:          f.user.ID,
		CurrentPassword: initialPassword,
		NewPassword:     "Undercut-Lap-7!",
		Answer1:         "rex",
		Answer2:         "MONACO",
		IPAddress:       "203.0.113.7",
	})
	require.NoError(t, err)

	updated := f.reload(t)
	assert.True(t, pkgauth.PasswordMatches(updated.PasswordHash, "Undercut-Lap-7!"))
	assert.Equal(t, f.clock.Now(), *updated.PasswordChangedAt)
	assert.NotEqual(t, f.user.TokenKey, updated.TokenKey)
	assert.Equal(t, 1, f.store.HistoryLen(f.user.ID))
	assert.Equal(t, []string{"driver@example.com"}, f.notifier.changed)

	// A second change inside 24 hours is refused.
	err = f.svc.ChangePassword(ctx, ChangePasswordInput{
		UserID:          f.user.ID,
		CurrentPassword: "Undercut-Lap-7!",
		NewPassword:     "Overcut-Lap-8!",
		Answer1:         "rex",
		Answer2:         "monaco",
	})
	assert.ErrorIs(t, err, models.ErrTooSoon)
}

func TestPasswordService_ChangePasswordAbortsBeforeMutation(t *testing.T) {
	tests := []struct {
		name    string
		in      ChangePasswordInput
		wantErr error
	}{
		{
			name:    "wrong current password",
			in:      ChangePasswordInput{CurrentPassword: "Wrong-Pass-1!", NewPassword: "Undercut-Lap-7!", Answer1: "Rex", Answer2: "Monaco"},
			wantErr: models.ErrInvalidCredentials,
		},
		{
			name:    "weak new password",
			in:      ChangePasswordInput{CurrentPassword: initialPassword, NewPassword: "undercut", Answer1: "Rex", Answer2: "Monaco"},
			wantErr: models.ErrWeakComplexity,
		},
		{
			name:    "reuses current password",
			in:      ChangePasswordInput{CurrentPassword: initialPassword, NewPassword: initialPassword, Answer1: "Rex", Answer2: "Monaco"},
			wantErr: models.ErrPasswordReused,
		},
		{
			name:    "one answer wrong",
			in:      ChangePasswordInput{CurrentPassword: initialPassword, NewPassword: "Undercut-Lap-7!", Answer1: "Rex", Answer2: "Silverstone"},
			wantErr: models.ErrVerificationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPasswordFixture(t)
			in := tt.in
			in.UserID = f.user.ID

			err := f.svc.ChangePassword(context.Background(), in)
			assert.ErrorIs(t, err, tt.wantErr)

			updated := f.reload(t)
			assert.Equal(t, f.user.PasswordHash, updated.PasswordHash)
			assert.Zero(t, f.store.HistoryLen(f.user.ID))
			assert.Empty(t, f.notifier.changed)
		})
	}
}

// Questions are set, a change is requested and step-up fails: nothing moves.
func TestPasswordService_StepUpFailureBlocksChange(t *testing.T) {
	f := newPasswordFixture(t)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, ChangePasswordInput{
		UserID:          f.user.ID,
		CurrentPassword: initialPassword,
		NewPassword:     "Undercut-Lap-7!",
		Answer1:         "Fido",
		Answer2:         "Paris",
	})
	require.ErrorIs(t, err, models.ErrVerificationFailed)

	updated := f.reload(t)
	assert.Zero(t, f.store.HistoryLen(f.user.ID))
	assert.True(t, pkgauth.PasswordMatches(updated.PasswordHash, initialPassword))
	assert.Equal(t, f.user.PasswordChangedAt, updated.PasswordChangedAt)
}

func TestPasswordService_ResetPassword(t *testing.T) {
	f := newPasswordFixture(t)
	ctx := context.Background()

	challenge, err := f.svc.ResetChallenge(ctx, " Driver@Example.com")
	require.NoError(t, err)
	assert.Equal(t, questionPet, challenge.Question1)

	err = f.svc.ResetPassword(ctx, ResetPasswordInput{
		Email:       "driver@example.com",
		NewPassword: "Safety-Car-9!",
		Answer1:     "Rex",
		Answer2:     "Monaco",
	})
	require.NoError(t, err)
	assert.True(t, pkgauth.PasswordMatches(f.reload(t).PasswordHash, "Safety-Car-9!"))
}

func TestPasswordService_ResetUnknownEmail(t *testing.T) {
	f := newPasswordFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResetChallenge(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, models.ErrNotConfigured)

	err = f.svc.ResetPassword(ctx, ResetPasswordInput{
		Email:       "nobody@example.com",
		NewPassword: "Safety-Car-9!",
		Answer1:     "Rex",
		Answer2:     "Monaco",
	})
	assert.ErrorIs(t, err, models.ErrVerificationFailed)
}

func TestPasswordService_CommitLosesRace(t *testing.T) {
	f := newPasswordFixture(t)
	ctx := context.Background()

	stale := *f.user
	require.NoError(t, f.svc.Commit(ctx, f.user, "Undercut-Lap-7!"))

	err := f.svc.Commit(ctx, &stale, "Overcut-Lap-8!")
	assert.ErrorIs(t, err, models.ErrVersionConflict)
	assert.True(t, pkgauth.PasswordMatches(f.reload(t).PasswordHash, "Undercut-Lap-7!"))
}
