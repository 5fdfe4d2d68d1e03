package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/pkg/auth"
	"github.com/google/uuid"
)

func (s *Store) RecentPasswords(_ context.Context, userID string, n int) ([]*models.PasswordHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[userID]
	out := make([]*models.PasswordHistoryEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		c := *entries[i]
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) RotatePassword(_ context.Context, userID, retiredHash, newHash string, changedAt time.Time) error {
	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		return fmt.Errorf("failed to generate token key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return models.ErrNotFound
	}
	if u.PasswordHash != retiredHash {
		return models.ErrVersionConflict
	}

	s.history[userID] = append(s.history[userID], &models.PasswordHistoryEntry{
		ID:           uuid.New().String(),
		UserID:       userID,
		PasswordHash: retiredHash,
		CreatedAt:    changedAt,
	})

	u.PasswordHash = newHash
	u.PasswordChangedAt = &changedAt
	u.TokenKey = tokenKey
	u.UpdatedAt = changedAt
	return nil
}

// HistoryLen reports how many retired hashes are stored for the user
func (s *Store) HistoryLen(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history[userID])
}
