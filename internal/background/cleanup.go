package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TokenCleaner removes revocation rows whose token has expired anyway
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// AttemptCleaner prunes the sign-in ledger
type AttemptCleaner interface {
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// FailureCleaner prunes access and input failures
type FailureCleaner interface {
	DeleteFailuresBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LockoutCleaner drops idle lockout rows, including placeholders for
// emails that never matched an account
type LockoutCleaner interface {
	DeleteIdleStates(ctx context.Context, cutoff time.Time) (int64, error)
}

// LockoutEventCleaner prunes the lock history
type LockoutEventCleaner interface {
	DeleteLockoutEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaners groups the stores the manager prunes. Nil fields are skipped.
type Cleaners struct {
	Tokens   TokenCleaner
	Attempts AttemptCleaner
	Failures FailureCleaner
	Lockouts LockoutCleaner
	Events   LockoutEventCleaner
}

// CleanupManager periodically prunes expired security records
type CleanupManager struct {
	cleaners  Cleaners
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager. Records older than
// retention are deleted every interval.
func NewCleanupManager(cleaners Cleaners, logger *slog.Logger, interval, retention time.Duration) *CleanupManager {
	return &CleanupManager{
		cleaners:  cleaners,
		logger:    logger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce runs one pass over every store. A failing store does not stop the others.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cm.now().Add(-cm.retention)

	if cm.cleaners.Tokens != nil {
		cm.report(ctx, "revoked_tokens", func() (int64, error) {
			return cm.cleaners.Tokens.CleanupExpiredTokens(ctx)
		})
	}
	if cm.cleaners.Attempts != nil {
		cm.report(ctx, "login_attempts", func() (int64, error) {
			return cm.cleaners.Attempts.DeleteAttemptsBefore(ctx, cutoff)
		})
	}
	if cm.cleaners.Failures != nil {
		cm.report(ctx, "failure_records", func() (int64, error) {
			return cm.cleaners.Failures.DeleteFailuresBefore(ctx, cutoff)
		})
	}
	if cm.cleaners.Lockouts != nil {
		cm.report(ctx, "lockout_states", func() (int64, error) {
			return cm.cleaners.Lockouts.DeleteIdleStates(ctx, cutoff)
		})
	}
	if cm.cleaners.Events != nil {
		cm.report(ctx, "lockout_events", func() (int64, error) {
			return cm.cleaners.Events.DeleteLockoutEventsBefore(ctx, cutoff)
		})
	}
}

func (cm *CleanupManager) report(ctx context.Context, table string, run func() (int64, error)) {
	rows, err := run()
	if err != nil {
		cm.logger.ErrorContext(ctx, "cleanup failed", slog.String("table", table), slog.Any("error", err))
		return
	}
	if rows > 0 {
		cm.logger.InfoContext(ctx, "cleanup completed", slog.String("table", table), slog.Int64("rows_deleted", rows))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
