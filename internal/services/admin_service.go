package services

import (
	"context"
	"log/slog"
)

// AdminService backs the administrator endpoints
type AdminService struct {
	users   UserLookup
	lockout *LockoutService
	logger  *slog.Logger
}

func NewAdminService(users UserLookup, lockout *LockoutService, logger *slog.Logger) *AdminService {
	return &AdminService{
		users:   users,
		lockout: lockout,
		logger:  logger,
	}
}

// UnlockUser clears the lockout counter of userID on behalf of actorID
func (s *AdminService) UnlockUser(ctx context.Context, actorID, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.lockout.Unlock(ctx, user.Email, actorID); err != nil {
		s.logger.ErrorContext(ctx, "failed to unlock account",
			slog.String("user_id", userID),
			slog.String("actor_id", actorID),
			slog.Any("error", err))
		return err
	}

	s.logger.InfoContext(ctx, "account unlocked by administrator",
		slog.String("user_id", userID),
		slog.String("actor_id", actorID))
	return nil
}
