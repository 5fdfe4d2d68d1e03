package memory

import (
	"context"

	"github.com/BradenHooton/pitwall/internal/models"
)

func (s *Store) GetQuestions(_ context.Context, userID string) (*models.SecurityQuestionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *q
	return &c, nil
}

func (s *Store) UpsertQuestions(_ context.Context, set *models.SecurityQuestionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[set.UserID]; !ok {
		return models.ErrBadRequest
	}

	now := s.now()
	set.UpdatedAt = now
	if prev, ok := s.questions[set.UserID]; ok {
		set.CreatedAt = prev.CreatedAt
	} else {
		set.CreatedAt = now
	}

	c := *set
	s.questions[set.UserID] = &c
	return nil
}
