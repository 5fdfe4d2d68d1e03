package memory

import (
	"context"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/google/uuid"
)

func (s *Store) RecordAttempt(_ context.Context, attempt *models.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt.ID = uuid.New().String()
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = s.now()
	}
	c := *attempt
	s.attempts = append(s.attempts, &c)
	return nil
}

func (s *Store) ListAttempts(_ context.Context, opts models.ListOptions) ([]*models.LoginAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := newestFirst(s.attempts, func(a *models.LoginAttempt) bool {
		return opts.Email == "" || a.Email == opts.Email
	})
	sortByTimeDesc(matched, func(a *models.LoginAttempt) time.Time { return a.AttemptedAt })

	out := page(matched, opts)
	for i, a := range out {
		c := *a
		out[i] = &c
	}
	return out, nil
}

func (s *Store) DeleteAttemptsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.attempts[:0]
	var deleted int64
	for _, a := range s.attempts {
		if a.AttemptedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	s.attempts = kept
	return deleted, nil
}

// Attempts returns a copy of the whole ledger in insertion order
func (s *Store) Attempts() []models.LoginAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.LoginAttempt, len(s.attempts))
	for i, a := range s.attempts {
		out[i] = *a
	}
	return out
}
