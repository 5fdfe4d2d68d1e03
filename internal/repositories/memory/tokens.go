package memory

import (
	"context"
	"time"
)

func (s *Store) RevokeToken(_ context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.revoked[jti]; ok {
		return nil
	}
	s.revoked[jti] = revokedToken{userID: userID, tokenType: tokenType, expiresAt: expiresAt, reason: reason}
	return nil
}

func (s *Store) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *Store) CleanupExpiredTokens(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var deleted int64
	for jti, t := range s.revoked {
		if t.expiresAt.Before(now) {
			delete(s.revoked, jti)
			deleted++
		}
	}
	return deleted, nil
}
