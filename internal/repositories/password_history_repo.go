package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/pitwall/internal/database"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/pkg/auth"
	"github.com/jackc/pgx/v5"
)

type PasswordHistoryRepository struct {
	db *database.DB
}

func NewPasswordHistoryRepository(db *database.DB) *PasswordHistoryRepository {
	return &PasswordHistoryRepository{db: db}
}

// RecentPasswords returns up to n retired hashes, newest first
func (r *PasswordHistoryRepository) RecentPasswords(ctx context.Context, userID string, n int) ([]*models.PasswordHistoryEntry, error) {
	if n <= 0 {
		return []*models.PasswordHistoryEntry{}, nil
	}

	query := `
		SELECT id, user_id, password_hash, created_at
		FROM password_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, n)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.PasswordHistoryEntry, error) {
		var e models.PasswordHistoryEntry
		err := row.Scan(&e.ID, &e.UserID, &e.PasswordHash, &e.CreatedAt)
		return &e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan password history: %w", database.MapPostgresError(err))
	}
	return entries, nil
}

// RotatePassword appends the retired hash to history and installs the new
// hash in one transaction. The update is conditional on the live hash still
// being retiredHash; a concurrent rotation yields models.ErrVersionConflict
// and nothing is written. The token key is rotated so existing sessions end.
func (r *PasswordHistoryRepository) RotatePassword(ctx context.Context, userID, retiredHash, newHash string, changedAt time.Time) error {
	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		return fmt.Errorf("failed to generate token key: %w", err)
	}

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE users
			SET password_hash = $1, password_changed_at = $2, token_key = $3, updated_at = $2
			WHERE id = $4 AND password_hash = $5
		`, newHash, changedAt, tokenKey, userID, retiredHash)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrVersionConflict
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO password_history (user_id, password_hash, created_at)
			VALUES ($1, $2, $3)
		`, userID, retiredHash, changedAt)
		return database.MapPostgresError(err)
	})
}
