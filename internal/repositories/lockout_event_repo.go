package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/pitwall/internal/database"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LockoutEventRepository is the append-only history of applied locks
type LockoutEventRepository struct {
	pool *pgxpool.Pool
}

func NewLockoutEventRepository(db *database.DB) *LockoutEventRepository {
	return &LockoutEventRepository{pool: db.Pool}
}

func (r *LockoutEventRepository) RecordLockoutEvent(ctx context.Context, e *models.LockoutEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO lockout_events (email, user_id, locked_until, lockout_count, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, e.Email, e.UserID, e.LockedUntil, e.LockoutCount, e.Reason, e.CreatedAt).Scan(&e.ID)
	return database.MapPostgresError(err)
}

// ListLockoutEvents returns applied locks newest first, optionally for one email
func (r *LockoutEventRepository) ListLockoutEvents(ctx context.Context, opts models.ListOptions) ([]*models.LockoutEvent, error) {
	opts = opts.Normalized()

	rows, err := r.pool.Query(ctx, `
		SELECT id, email, user_id, locked_until, lockout_count, reason, created_at
		FROM lockout_events
		WHERE ($1::text = '' OR email = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, opts.Email, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query lockout events: %w", database.MapPostgresError(err))
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.LockoutEvent, error) {
		var e models.LockoutEvent
		err := row.Scan(&e.ID, &e.Email, &e.UserID, &e.LockedUntil, &e.LockoutCount, &e.Reason, &e.CreatedAt)
		return &e, err
	})
}

func (r *LockoutEventRepository) DeleteLockoutEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM lockout_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
