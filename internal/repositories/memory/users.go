package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/pkg/auth"
	"github.com/google/uuid"
)

func (s *Store) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.userByEmailLocked(models.NormalizeEmail(email))
}

func (s *Store) userByEmailLocked(email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) Create(_ context.Context, user *models.User) (*models.User, error) {
	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := models.NormalizeEmail(user.Email)
	if _, err := s.userByEmailLocked(email); err == nil {
		return nil, models.ErrConflict
	}

	now := s.now()
	u := copyUser(user)
	u.ID = uuid.New().String()
	u.Email = email
	u.TokenKey = tokenKey
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.PasswordChangedAt == nil {
		u.PasswordChangedAt = &now
	}
	if u.Role == "" {
		u.Role = models.RoleDriver
	}

	s.users[u.ID] = u
	return copyUser(u), nil
}

func (s *Store) RecordLogin(_ context.Context, id string, at time.Time, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.LastLoginAt = &at
	u.LastLoginIP = &ip
	u.UpdatedAt = at
	return nil
}

func (s *Store) RotateTokenKey(_ context.Context, id string) error {
	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		return fmt.Errorf("failed to generate token key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.TokenKey = tokenKey
	u.UpdatedAt = s.now()
	return nil
}
