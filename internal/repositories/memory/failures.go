package memory

import (
	"context"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/google/uuid"
)

func (s *Store) CreateAccessFailure(_ context.Context, f *models.AccessFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.ID = uuid.New().String()
	if f.OccurredAt.IsZero() {
		f.OccurredAt = s.now()
	}
	c := *f
	s.accessFailures = append(s.accessFailures, &c)
	return nil
}

func (s *Store) CreateInputFailure(_ context.Context, f *models.InputFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.ID = uuid.New().String()
	if f.OccurredAt.IsZero() {
		f.OccurredAt = s.now()
	}
	c := *f
	s.inputFailures = append(s.inputFailures, &c)
	return nil
}

func (s *Store) ListAccessFailures(_ context.Context, opts models.ListOptions) ([]*models.AccessFailure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := newestFirst(s.accessFailures, func(f *models.AccessFailure) bool {
		return opts.Email == "" || (f.Email != nil && *f.Email == opts.Email)
	})
	sortByTimeDesc(matched, func(f *models.AccessFailure) time.Time { return f.OccurredAt })
	return page(matched, opts), nil
}

func (s *Store) ListInputFailures(_ context.Context, opts models.ListOptions) ([]*models.InputFailure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := newestFirst(s.inputFailures, func(f *models.InputFailure) bool {
		return opts.Email == "" || (f.Email != nil && *f.Email == opts.Email)
	})
	sortByTimeDesc(matched, func(f *models.InputFailure) time.Time { return f.OccurredAt })
	return page(matched, opts), nil
}

func (s *Store) DeleteFailuresBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64

	access := s.accessFailures[:0]
	for _, f := range s.accessFailures {
		if f.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		access = append(access, f)
	}
	s.accessFailures = access

	input := s.inputFailures[:0]
	for _, f := range s.inputFailures {
		if f.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		input = append(input, f)
	}
	s.inputFailures = input

	return deleted, nil
}
