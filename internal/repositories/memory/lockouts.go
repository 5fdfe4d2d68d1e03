package memory

import (
	"context"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/google/uuid"
)

func (s *Store) GetState(_ context.Context, email string) (*models.LockoutState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lockouts[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyLockout(l), nil
}

func (s *Store) GetOrCreateState(_ context.Context, email string, userID *string) (*models.LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lockouts[email]
	if !ok {
		l = &models.LockoutState{Email: email, UpdatedAt: s.now()}
		if userID != nil {
			id := *userID
			l.UserID = &id
		}
		s.lockouts[email] = l
	}
	return copyLockout(l), nil
}

func (s *Store) CompareAndSwapState(_ context.Context, next *models.LockoutState, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.lockouts[next.Email]
	if !ok || cur.Version != expectedVersion {
		return models.ErrVersionConflict
	}

	stored := copyLockout(next)
	if stored.UserID == nil {
		stored.UserID = cur.UserID
	}
	stored.Version = expectedVersion + 1
	s.lockouts[next.Email] = stored

	next.Version = stored.Version
	next.UserID = stored.UserID
	return nil
}

func (s *Store) ListLocked(_ context.Context, now time.Time, opts models.ListOptions) ([]*models.LockoutState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locked := make([]*models.LockoutState, 0)
	for _, l := range s.lockouts {
		if l.IsLockedAt(now) && (opts.Email == "" || l.Email == opts.Email) {
			locked = append(locked, copyLockout(l))
		}
	}
	sortByTimeDesc(locked, func(l *models.LockoutState) time.Time { return *l.LockedUntil })
	return page(locked, opts), nil
}

func (s *Store) DeleteIdleStates(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var deleted int64
	for email, l := range s.lockouts {
		idle := l.FailedCount == 0 || l.UserID == nil
		if idle && !l.IsLockedAt(now) && l.UpdatedAt.Before(cutoff) {
			delete(s.lockouts, email)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) RecordLockoutEvent(_ context.Context, e *models.LockoutEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = uuid.New().String()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	c := *e
	s.lockoutEvents = append(s.lockoutEvents, &c)
	return nil
}

func (s *Store) ListLockoutEvents(_ context.Context, opts models.ListOptions) ([]*models.LockoutEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := newestFirst(s.lockoutEvents, func(e *models.LockoutEvent) bool {
		return opts.Email == "" || e.Email == opts.Email
	})
	sortByTimeDesc(matched, func(e *models.LockoutEvent) time.Time { return e.CreatedAt })

	out := page(matched, opts)
	for i, e := range out {
		c := *e
		out[i] = &c
	}
	return out, nil
}

func (s *Store) DeleteLockoutEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	kept := s.lockoutEvents[:0]
	for _, e := range s.lockoutEvents {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.lockoutEvents = kept
	return deleted, nil
}
