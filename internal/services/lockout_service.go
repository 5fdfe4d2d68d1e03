package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/pkg/logger"
)

// LoginAttemptRepository is the append-only attempt ledger
type LoginAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	ListAttempts(ctx context.Context, opts models.ListOptions) ([]*models.LoginAttempt, error)
}

// LockoutRepository stores one counter row per normalized email
type LockoutRepository interface {
	GetState(ctx context.Context, email string) (*models.LockoutState, error)
	GetOrCreateState(ctx context.Context, email string, userID *string) (*models.LockoutState, error)
	CompareAndSwapState(ctx context.Context, next *models.LockoutState, expectedVersion int64) error
	ListLocked(ctx context.Context, now time.Time, opts models.ListOptions) ([]*models.LockoutState, error)
}

// LockoutEventRepository keeps the history of applied locks
type LockoutEventRepository interface {
	RecordLockoutEvent(ctx context.Context, e *models.LockoutEvent) error
	ListLockoutEvents(ctx context.Context, opts models.ListOptions) ([]*models.LockoutEvent, error)
}

// LockoutNotifier is told when a new lock is applied to a known account
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, email string, until time.Time)
}

// maxCASRetries bounds the compare-and-swap loop under contention
const maxCASRetries = 16

// AttemptInput describes one sign-in outcome
type AttemptInput struct {
	Email     string
	UserID    *string
	Success   bool
	Reason    string // ledger failure reason, ignored on success
	IPAddress string
	UserAgent string
}

// LockoutService tracks failed sign-ins per email and applies progressive locks
type LockoutService struct {
	attempts    LoginAttemptRepository
	states      LockoutRepository
	events      LockoutEventRepository
	policy      models.LockoutPolicy
	notifier    LockoutNotifier
	logger      *slog.Logger
	auditLogger *logger.AuditLogger
	now         func() time.Time

	notifying sync.WaitGroup
}

func NewLockoutService(attempts LoginAttemptRepository, states LockoutRepository, events LockoutEventRepository, policy models.LockoutPolicy, logger *slog.Logger, auditLogger *logger.AuditLogger) *LockoutService {
	return &LockoutService{
		attempts:    attempts,
		states:      states,
		events:      events,
		policy:      policy,
		logger:      logger,
		auditLogger: auditLogger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier enables lockout notifications
func (s *LockoutService) SetNotifier(n LockoutNotifier) {
	s.notifier = n
}

// State returns the counter row for email, or a zero state when none exists.
// Store failures are returned wrapped in models.ErrStoreUnavailable.
func (s *LockoutService) State(ctx context.Context, email string) (*models.LockoutState, error) {
	email = models.NormalizeEmail(email)

	state, err := s.states.GetState(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.LockoutState{Email: email}, nil
		}
		return nil, storeUnavailable("lockout lookup", err)
	}
	return state, nil
}

// IsLocked reports whether email is locked right now and until when
func (s *LockoutService) IsLocked(ctx context.Context, email string) (bool, *time.Time, error) {
	state, err := s.State(ctx, email)
	if err != nil {
		return false, nil, err
	}
	if !state.IsLockedAt(s.now()) {
		return false, nil, nil
	}
	return true, state.LockedUntil, nil
}

// RecordAttempt appends the ledger row and then moves the counter. A ledger
// write failure is logged and the counter update still runs.
//
// A success that finds a lock in force, applied by concurrent failures
// while the password was being checked, is refused with models.ErrLockedOut
// and the lock is kept.
func (s *LockoutService) RecordAttempt(ctx context.Context, in AttemptInput) (*models.LockoutState, error) {
	in.Email = models.NormalizeEmail(in.Email)
	if !in.Success {
		s.appendLedger(ctx, in)
		return s.fail(ctx, in)
	}

	if locked, _, err := s.IsLocked(ctx, in.Email); err == nil && locked {
		s.RecordLockedRefusal(ctx, in)
		return nil, models.ErrLockedOut
	}

	s.appendLedger(ctx, in)
	state, err := s.reset(ctx, in.Email, in.UserID, in.IPAddress, true)
	if errors.Is(err, models.ErrLockedOut) {
		// Locked between the check above and the swap.
		s.RecordLockedRefusal(ctx, in)
	}
	return state, err
}

// RecordLockedRefusal logs a refused attempt on a locked account. The
// counter is not touched.
func (s *LockoutService) RecordLockedRefusal(ctx context.Context, in AttemptInput) {
	in.Email = models.NormalizeEmail(in.Email)
	in.Success = false
	in.Reason = models.FailureReasonAccountLocked
	s.appendLedger(ctx, in)
}

// RecordUncounted logs a failed attempt that says nothing about the
// credentials, such as a store outage. The counter is not touched.
func (s *LockoutService) RecordUncounted(ctx context.Context, in AttemptInput) {
	in.Email = models.NormalizeEmail(in.Email)
	in.Success = false
	s.appendLedger(ctx, in)
}

// Unlock clears the counter and any lock on email
func (s *LockoutService) Unlock(ctx context.Context, email, actorID string) error {
	email = models.NormalizeEmail(email)
	if _, err := s.reset(ctx, email, nil, "", false); err != nil {
		return err
	}

	s.auditLogger.LogAccountAction(ctx, logger.EventLockoutCleared, actorID, "", map[string]string{
		"email": logger.SanitizedEmail(email),
	})
	return nil
}

func (s *LockoutService) ListLocked(ctx context.Context, opts models.ListOptions) ([]*models.LockoutState, error) {
	opts.Email = models.NormalizeEmail(opts.Email)
	return s.states.ListLocked(ctx, s.now(), opts.Normalized())
}

// ListLockoutEvents returns the lock history, including expired and cleared locks
func (s *LockoutService) ListLockoutEvents(ctx context.Context, opts models.ListOptions) ([]*models.LockoutEvent, error) {
	opts.Email = models.NormalizeEmail(opts.Email)
	return s.events.ListLockoutEvents(ctx, opts.Normalized())
}

func (s *LockoutService) ListAttempts(ctx context.Context, opts models.ListOptions) ([]*models.LoginAttempt, error) {
	opts.Email = models.NormalizeEmail(opts.Email)
	return s.attempts.ListAttempts(ctx, opts.Normalized())
}

func (s *LockoutService) appendLedger(ctx context.Context, in AttemptInput) {
	attempt := &models.LoginAttempt{
		Email:       in.Email,
		UserID:      in.UserID,
		Success:     in.Success,
		IPAddress:   in.IPAddress,
		UserAgent:   in.UserAgent,
		AttemptedAt: s.now(),
	}
	if !in.Success && in.Reason != "" {
		reason := in.Reason
		attempt.FailureReason = &reason
	}

	if err := s.attempts.RecordAttempt(ctx, attempt); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login attempt",
			slog.String("email", logger.SanitizedEmail(in.Email)),
			slog.Bool("success", in.Success),
			slog.Any("error", err),
		)
	}
}

func (s *LockoutService) fail(ctx context.Context, in AttemptInput) (*models.LockoutState, error) {
	for i := 0; i < maxCASRetries; i++ {
		current, err := s.states.GetOrCreateState(ctx, in.Email, in.UserID)
		if err != nil {
			return nil, storeUnavailable("lockout state", err)
		}

		now := s.now()
		next, locked := s.policy.NextOnFailure(*current, now)
		if next.UserID == nil {
			next.UserID = in.UserID
		}

		err = s.states.CompareAndSwapState(ctx, &next, current.Version)
		if errors.Is(err, models.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, storeUnavailable("lockout update", err)
		}

		if locked {
			s.onLocked(ctx, &next)
		}
		return &next, nil
	}

	s.logger.ErrorContext(ctx, "lockout update kept conflicting",
		slog.String("email", logger.SanitizedEmail(in.Email)),
		slog.Int("retries", maxCASRetries),
	)
	return nil, fmt.Errorf("lockout update: %w", models.ErrVersionConflict)
}

// reset zeroes the counter. With refuseLocked set, a lock in force is left
// alone and models.ErrLockedOut is returned.
func (s *LockoutService) reset(ctx context.Context, email string, userID *string, ip string, refuseLocked bool) (*models.LockoutState, error) {
	for i := 0; i < maxCASRetries; i++ {
		current, err := s.states.GetState(ctx, email)
		if errors.Is(err, models.ErrNotFound) {
			return &models.LockoutState{Email: email, UserID: userID}, nil
		}
		if err != nil {
			return nil, storeUnavailable("lockout state", err)
		}

		now := s.now()
		wasLocked := current.IsLockedAt(now)
		if refuseLocked && wasLocked {
			return nil, models.ErrLockedOut
		}

		if current.FailedCount == 0 && current.LockoutCount == 0 && current.LockedUntil == nil {
			return current, nil
		}

		next := models.NextOnSuccess(*current, now)
		if next.UserID == nil {
			next.UserID = userID
		}

		err = s.states.CompareAndSwapState(ctx, &next, current.Version)
		if errors.Is(err, models.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, storeUnavailable("lockout reset", err)
		}

		if wasLocked {
			s.logger.InfoContext(ctx, "lockout cleared",
				slog.String("email", logger.SanitizedEmail(email)),
				slog.String("ip_address", ip),
			)
		}
		return &next, nil
	}
	return nil, fmt.Errorf("lockout reset: %w", models.ErrVersionConflict)
}

func (s *LockoutService) onLocked(ctx context.Context, state *models.LockoutState) {
	s.auditLogger.LogLockout(ctx, state.Email, *state.LockedUntil, state.LockoutCount)

	event := &models.LockoutEvent{
		Email:        state.Email,
		UserID:       state.UserID,
		LockedUntil:  *state.LockedUntil,
		LockoutCount: state.LockoutCount,
		Reason:       models.LockReasonTooManyFailures,
		CreatedAt:    s.now(),
	}
	if state.LockReason != nil {
		event.Reason = *state.LockReason
	}
	if err := s.events.RecordLockoutEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record lockout event",
			slog.String("email", logger.SanitizedEmail(state.Email)),
			slog.Any("error", err),
		)
	}

	// Placeholder rows for unknown emails never trigger mail.
	if s.notifier != nil && state.UserID != nil {
		email, until := state.Email, *state.LockedUntil
		bgCtx := context.WithoutCancel(ctx)

		s.notifying.Add(1)
		go func() {
			defer s.notifying.Done()
			s.notifier.NotifyLockout(bgCtx, email, until)
		}()
	}
}

// WaitForNotifications blocks until every lockout notification already
// dispatched has finished
func (s *LockoutService) WaitForNotifications() {
	s.notifying.Wait()
}

// storeUnavailable keeps already classified store errors and wraps the rest
func storeUnavailable(op string, err error) error {
	if errors.Is(err, models.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, models.ErrStoreUnavailable, err)
}
