package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/pitwall/internal/database"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LockoutRepository stores per-email lockout counters. All writes go through
// CompareAndSwapState so concurrent attempts cannot undercount.
type LockoutRepository struct {
	pool *pgxpool.Pool
}

func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{pool: db.Pool}
}

const lockoutColumns = `email, user_id, failed_count, lockout_count, locked_until, lock_reason, version, updated_at`

func scanLockoutRow(scanner rowScanner) (*models.LockoutState, error) {
	var s models.LockoutState
	err := scanner.Scan(
		&s.Email, &s.UserID, &s.FailedCount, &s.LockoutCount,
		&s.LockedUntil, &s.LockReason, &s.Version, &s.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

// GetState returns models.ErrNotFound when the email has never failed
func (r *LockoutRepository) GetState(ctx context.Context, email string) (*models.LockoutState, error) {
	query := `SELECT ` + lockoutColumns + ` FROM lockout_states WHERE email = $1`
	return scanLockoutRow(r.pool.QueryRow(ctx, query, email))
}

// GetOrCreateState loads the row, inserting a zeroed placeholder first if the
// email has none. userID may be nil for unknown emails.
func (r *LockoutRepository) GetOrCreateState(ctx context.Context, email string, userID *string) (*models.LockoutState, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lockout_states (email, user_id)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING
	`, email, userID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return r.GetState(ctx, email)
}

// CompareAndSwapState writes next only if the stored version still equals
// expectedVersion, bumping the version. Returns models.ErrVersionConflict
// when another writer got there first.
func (r *LockoutRepository) CompareAndSwapState(ctx context.Context, next *models.LockoutState, expectedVersion int64) error {
	query := `
		UPDATE lockout_states
		SET user_id = COALESCE($2, user_id),
		    failed_count = $3,
		    lockout_count = $4,
		    locked_until = $5,
		    lock_reason = $6,
		    version = version + 1,
		    updated_at = $7
		WHERE email = $1 AND version = $8
		RETURNING version
	`

	err := r.pool.QueryRow(ctx, query,
		next.Email, next.UserID, next.FailedCount, next.LockoutCount,
		next.LockedUntil, next.LockReason, next.UpdatedAt, expectedVersion,
	).Scan(&next.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrVersionConflict
	}
	return database.MapPostgresError(err)
}

// ListLocked returns states whose lock is still in force at now, optionally
// for one email
func (r *LockoutRepository) ListLocked(ctx context.Context, now time.Time, opts models.ListOptions) ([]*models.LockoutState, error) {
	opts = opts.Normalized()

	query := `
		SELECT ` + lockoutColumns + `
		FROM lockout_states
		WHERE locked_until > $1 AND ($2::text = '' OR email = $2)
		ORDER BY locked_until DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, now, opts.Email, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query lockouts: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	states := make([]*models.LockoutState, 0)
	for rows.Next() {
		s, err := scanLockoutRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lockout: %w", err)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lockout rows: %w", err)
	}
	return states, nil
}

// DeleteIdleStates removes unlocked rows last touched before cutoff that are
// either zeroed or placeholders for emails with no account. Placeholders
// never see a successful sign-in, so their counters are never zeroed.
func (r *LockoutRepository) DeleteIdleStates(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM lockout_states
		WHERE (failed_count = 0 OR user_id IS NULL)
		  AND (locked_until IS NULL OR locked_until < NOW())
		  AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
