package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/pitwall/internal/database"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptRepository is the append-only attempt ledger
type LoginAttemptRepository struct {
	db *database.DB
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// RecordAttempt appends one ledger row
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, user_id, success, failure_reason, ip_address, user_agent, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}

	err := r.db.Pool.QueryRow(ctx, query,
		attempt.Email,
		attempt.UserID,
		attempt.Success,
		attempt.FailureReason,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptedAt,
	).Scan(&attempt.ID)

	return database.MapPostgresError(err)
}

// ListAttempts returns ledger rows newest first
func (r *LoginAttemptRepository) ListAttempts(ctx context.Context, opts models.ListOptions) ([]*models.LoginAttempt, error) {
	opts = opts.Normalized()

	query := `
		SELECT id, email, user_id, success, failure_reason, ip_address, user_agent, attempted_at
		FROM login_attempts
		WHERE ($1::text = '' OR email = $1)
		ORDER BY attempted_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, opts.Email, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", database.MapPostgresError(err))
	}

	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.LoginAttempt, error) {
		var a models.LoginAttempt
		err := row.Scan(&a.ID, &a.Email, &a.UserID, &a.Success, &a.FailureReason, &a.IPAddress, &a.UserAgent, &a.AttemptedAt)
		return &a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan login attempts: %w", err)
	}
	return attempts, nil
}

// DeleteAttemptsBefore prunes ledger rows past the retention window
func (r *LoginAttemptRepository) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
