package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/pitwall/internal/models"
)

// FailureRepository persists access and input failure rows
type FailureRepository interface {
	CreateAccessFailure(ctx context.Context, f *models.AccessFailure) error
	CreateInputFailure(ctx context.Context, f *models.InputFailure) error
	ListAccessFailures(ctx context.Context, opts models.ListOptions) ([]*models.AccessFailure, error)
	ListInputFailures(ctx context.Context, opts models.ListOptions) ([]*models.InputFailure, error)
}

// defaultRecordTimeout bounds a single best-effort write
const defaultRecordTimeout = 2 * time.Second

// FailureRecorder writes failure diagnostics to slog and the store. Store
// errors are logged and swallowed; recording never fails the caller.
type FailureRecorder struct {
	repo    FailureRepository
	logger  *slog.Logger
	timeout time.Duration
}

func NewFailureRecorder(repo FailureRepository, logger *slog.Logger) *FailureRecorder {
	return &FailureRecorder{
		repo:    repo,
		logger:  logger,
		timeout: defaultRecordTimeout,
	}
}

// writeContext detaches from request cancellation so a client hang-up does
// not drop the row, but still bounds the write.
func (r *FailureRecorder) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
}

// RecordAccessFailure logs an authorization denial
func (r *FailureRecorder) RecordAccessFailure(ctx context.Context, f models.AccessFailure) {
	r.logger.WarnContext(ctx, "access denied",
		slog.Any("user_id", f.UserID),
		slog.String("resource", f.Resource),
		slog.String("action", f.Action),
		slog.String("reason", f.Reason),
		slog.String("ip_address", f.IPAddress),
	)

	wctx, cancel := r.writeContext(ctx)
	defer cancel()

	if err := r.repo.CreateAccessFailure(wctx, &f); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist access failure",
			slog.String("resource", f.Resource),
			slog.Any("error", err),
		)
	}
}

// RecordInputFailure logs a classified validation failure
func (r *FailureRecorder) RecordInputFailure(ctx context.Context, f models.InputFailure) {
	r.logger.InfoContext(ctx, "input validation failed",
		slog.String("failure_type", f.FailureType),
		slog.String("flow", f.Flow),
		slog.String("field", f.Field),
		slog.String("ip_address", f.IPAddress),
	)

	wctx, cancel := r.writeContext(ctx)
	defer cancel()

	if err := r.repo.CreateInputFailure(wctx, &f); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist input failure",
			slog.String("flow", f.Flow),
			slog.Any("error", err),
		)
	}
}

func (r *FailureRecorder) ListAccessFailures(ctx context.Context, opts models.ListOptions) ([]*models.AccessFailure, error) {
	opts.Email = models.NormalizeEmail(opts.Email)
	return r.repo.ListAccessFailures(ctx, opts.Normalized())
}

func (r *FailureRecorder) ListInputFailures(ctx context.Context, opts models.ListOptions) ([]*models.InputFailure, error) {
	opts.Email = models.NormalizeEmail(opts.Email)
	return r.repo.ListInputFailures(ctx, opts.Normalized())
}
