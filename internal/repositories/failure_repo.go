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

// FailureRepository persists access and input failure diagnostics
type FailureRepository struct {
	pool *pgxpool.Pool
}

func NewFailureRepository(db *database.DB) *FailureRepository {
	return &FailureRepository{pool: db.Pool}
}

func (r *FailureRepository) CreateAccessFailure(ctx context.Context, f *models.AccessFailure) error {
	query := `
		INSERT INTO access_failures (user_id, email, role, resource, action, reason, ip_address, user_agent, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	if f.OccurredAt.IsZero() {
		f.OccurredAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, query,
		f.UserID, f.Email, f.Role, f.Resource, f.Action, f.Reason,
		f.IPAddress, f.UserAgent, f.Metadata, f.OccurredAt,
	).Scan(&f.ID)
	return database.MapPostgresError(err)
}

func (r *FailureRepository) CreateInputFailure(ctx context.Context, f *models.InputFailure) error {
	query := `
		INSERT INTO input_failures (email, failure_type, flow, field, message, ip_address, user_agent, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	if f.OccurredAt.IsZero() {
		f.OccurredAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, query,
		f.Email, f.FailureType, f.Flow, f.Field, f.Message,
		f.IPAddress, f.UserAgent, f.Metadata, f.OccurredAt,
	).Scan(&f.ID)
	return database.MapPostgresError(err)
}

func (r *FailureRepository) ListAccessFailures(ctx context.Context, opts models.ListOptions) ([]*models.AccessFailure, error) {
	opts = opts.Normalized()

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, email, role, resource, action, reason, ip_address, user_agent, metadata, occurred_at
		FROM access_failures
		WHERE ($1::text = '' OR email = $1)
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3
	`, opts.Email, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query access failures: %w", database.MapPostgresError(err))
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.AccessFailure, error) {
		var f models.AccessFailure
		err := row.Scan(&f.ID, &f.UserID, &f.Email, &f.Role, &f.Resource, &f.Action, &f.Reason,
			&f.IPAddress, &f.UserAgent, &f.Metadata, &f.OccurredAt)
		return &f, err
	})
}

func (r *FailureRepository) ListInputFailures(ctx context.Context, opts models.ListOptions) ([]*models.InputFailure, error) {
	opts = opts.Normalized()

	rows, err := r.pool.Query(ctx, `
		SELECT id, email, failure_type, flow, field, message, ip_address, user_agent, metadata, occurred_at
		FROM input_failures
		WHERE ($1::text = '' OR email = $1)
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3
	`, opts.Email, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query input failures: %w", database.MapPostgresError(err))
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.InputFailure, error) {
		var f models.InputFailure
		err := row.Scan(&f.ID, &f.Email, &f.FailureType, &f.Flow, &f.Field, &f.Message,
			&f.IPAddress, &f.UserAgent, &f.Metadata, &f.OccurredAt)
		return &f, err
	})
}

// DeleteFailuresBefore prunes both tables past the retention window
func (r *FailureRepository) DeleteFailuresBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"access_failures", "input_failures"} {
		result, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE occurred_at < $1`, table), cutoff)
		if err != nil {
			return total, database.MapPostgresError(err)
		}
		total += result.RowsAffected()
	}
	return total, nil
}
