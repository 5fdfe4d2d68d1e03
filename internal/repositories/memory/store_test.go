package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, s *Store, email, hash string) *models.User {
	t.Helper()
	u, err := s.Create(context.Background(), &models.User{Email: email, PasswordHash: hash, Name: "Test Driver"})
	require.NoError(t, err)
	return u
}

func TestStore_CreateUser(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	u := seedUser(t, s, "  Driver@Team.COM ", "hash")
	assert.Equal(t, "driver@team.com", u.Email)
	assert.Equal(t, models.RoleDriver, u.Role)
	assert.NotEmpty(t, u.TokenKey)
	assert.NotNil(t, u.PasswordChangedAt)

	_, err := s.Create(ctx, &models.User{Email: "DRIVER@team.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, models.ErrConflict)

	got, err := s.GetByEmail(ctx, "driver@TEAM.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_CompareAndSwapState(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	state, err := s.GetOrCreateState(ctx, "ghost@team.com", nil)
	require.NoError(t, err)
	assert.Zero(t, state.FailedCount)
	assert.Nil(t, state.UserID)

	next := *state
	next.FailedCount = 1
	require.NoError(t, s.CompareAndSwapState(ctx, &next, state.Version))
	assert.Equal(t, state.Version+1, next.Version)

	stale := *state
	stale.FailedCount = 1
	assert.ErrorIs(t, s.CompareAndSwapState(ctx, &stale, state.Version), models.ErrVersionConflict)

	stored, err := s.GetState(ctx, "ghost@team.com")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FailedCount)
}

func TestStore_CompareAndSwapState_ConcurrentWritersSerialize(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, err := s.GetOrCreateState(ctx, "pit@team.com", nil)
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cur, err := s.GetState(ctx, "pit@team.com")
				if err != nil {
					t.Error(err)
					return
				}
				next := *cur
				next.FailedCount++
				if err := s.CompareAndSwapState(ctx, &next, cur.Version); err == nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	final, err := s.GetState(ctx, "pit@team.com")
	require.NoError(t, err)
	assert.Equal(t, writers, final.FailedCount)
	assert.Equal(t, int64(writers), final.Version)
}

func TestStore_RotatePassword(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "engineer@team.com", "hash-1")

	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.RotatePassword(ctx, u.ID, "hash-1", "hash-2", at))

	got, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", got.PasswordHash)
	assert.Equal(t, at, *got.PasswordChangedAt)
	assert.NotEqual(t, u.TokenKey, got.TokenKey)

	history, err := s.RecentPasswords(ctx, u.ID, 3)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hash-1", history[0].PasswordHash)

	err = s.RotatePassword(ctx, u.ID, "hash-1", "hash-3", at.Add(time.Hour))
	assert.ErrorIs(t, err, models.ErrVersionConflict)
	assert.Equal(t, 1, s.HistoryLen(u.ID), "conflicting rotation must not append history")
}

func TestStore_RecentPasswords_NewestFirstAndBounded(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := seedUser(t, s, "principal@team.com", "h0")

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, next := range []string{"h1", "h2", "h3", "h4"} {
		prev := "h" + string(rune('0'+i))
		require.NoError(t, s.RotatePassword(ctx, u.ID, prev, next, at.Add(time.Duration(i)*48*time.Hour)))
	}

	history, err := s.RecentPasswords(ctx, u.ID, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "h3", history[0].PasswordHash)
	assert.Equal(t, "h2", history[1].PasswordHash)
	assert.Equal(t, "h1", history[2].PasswordHash)
}

func TestStore_ListLockedAndCleanup(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	locked, err := s.GetOrCreateState(ctx, "locked@team.com", nil)
	require.NoError(t, err)
	until := now.Add(10 * time.Minute)
	locked.FailedCount = 5
	locked.LockedUntil = &until
	require.NoError(t, s.CompareAndSwapState(ctx, locked, 0))

	_, err = s.GetOrCreateState(ctx, "idle@team.com", nil)
	require.NoError(t, err)

	list, err := s.ListLocked(ctx, now, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "locked@team.com", list[0].Email)

	deleted, err := s.DeleteIdleStates(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = s.GetState(ctx, "idle@team.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_ListLockedFiltersByEmail(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()
	until := now.Add(10 * time.Minute)

	for _, email := range []string{"one@team.com", "two@team.com"} {
		st, err := s.GetOrCreateState(ctx, email, nil)
		require.NoError(t, err)
		st.FailedCount, st.LockedUntil = 5, &until
		require.NoError(t, s.CompareAndSwapState(ctx, st, st.Version))
	}

	all, err := s.ListLocked(ctx, now, models.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := s.ListLocked(ctx, now, models.ListOptions{Email: "two@team.com"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "two@team.com", one[0].Email)
}

func TestStore_CleanupDropsStalePlaceholders(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()
	known := seedUser(t, s, "known@team.com", "hash")

	touch := func(email string, userID *string) {
		st, err := s.GetOrCreateState(ctx, email, userID)
		require.NoError(t, err)
		st.FailedCount, st.UpdatedAt = 3, now.Add(-2*time.Hour)
		require.NoError(t, s.CompareAndSwapState(ctx, st, st.Version))
	}
	touch("ghost@team.com", nil)
	touch(known.Email, &known.ID)

	deleted, err := s.DeleteIdleStates(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = s.GetState(ctx, "ghost@team.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetState(ctx, known.Email)
	assert.NoError(t, err)
}

func TestStore_LockoutEvents(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for i, email := range []string{"a@team.com", "b@team.com", "a@team.com"} {
		require.NoError(t, s.RecordLockoutEvent(ctx, &models.LockoutEvent{
			Email:        email,
			LockedUntil:  base.Add(time.Hour),
			LockoutCount: i + 1,
			Reason:       models.LockReasonTooManyFailures,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := s.ListLockoutEvents(ctx, models.ListOptions{Email: "a@team.com", Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 3, events[0].LockoutCount)
	assert.NotEmpty(t, events[0].ID)

	deleted, err := s.DeleteLockoutEventsBefore(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	events, err = s.ListLockoutEvents(ctx, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a@team.com", events[0].Email)
}

func TestStore_LedgerPaging(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordAttempt(ctx, &models.LoginAttempt{
			Email:       "driver@team.com",
			AttemptedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.RecordAttempt(ctx, &models.LoginAttempt{Email: "other@team.com", AttemptedAt: base}))

	got, err := s.ListAttempts(ctx, models.ListOptions{Email: "driver@team.com", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(3*time.Minute), got[0].AttemptedAt)
	assert.Equal(t, base.Add(2*time.Minute), got[1].AttemptedAt)

	deleted, err := s.DeleteAttemptsBefore(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Len(t, s.Attempts(), 3)
}
