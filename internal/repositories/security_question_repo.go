package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/pitwall/internal/database"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SecurityQuestionRepository struct {
	pool *pgxpool.Pool
}

func NewSecurityQuestionRepository(db *database.DB) *SecurityQuestionRepository {
	return &SecurityQuestionRepository{pool: db.Pool}
}

// GetQuestions returns models.ErrNotFound when the user has no set
func (r *SecurityQuestionRepository) GetQuestions(ctx context.Context, userID string) (*models.SecurityQuestionSet, error) {
	query := `
		SELECT user_id, question_1, answer_1_hash, question_2, answer_2_hash, created_at, updated_at
		FROM security_questions WHERE user_id = $1
	`

	var set models.SecurityQuestionSet
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&set.UserID, &set.Question1, &set.Answer1Hash, &set.Question2, &set.Answer2Hash,
		&set.CreatedAt, &set.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &set, nil
}

// UpsertQuestions replaces the whole set in one statement
func (r *SecurityQuestionRepository) UpsertQuestions(ctx context.Context, set *models.SecurityQuestionSet) error {
	now := time.Now().UTC()
	set.UpdatedAt = now

	query := `
		INSERT INTO security_questions (user_id, question_1, answer_1_hash, question_2, answer_2_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET question_1 = EXCLUDED.question_1,
		    answer_1_hash = EXCLUDED.answer_1_hash,
		    question_2 = EXCLUDED.question_2,
		    answer_2_hash = EXCLUDED.answer_2_hash,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		set.UserID, set.Question1, set.Answer1Hash, set.Question2, set.Answer2Hash, now,
	).Scan(&set.CreatedAt)
	return database.MapPostgresError(err)
}
