package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/pitwall/internal/database"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/pkg/auth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, password_hash, name, role, team_id, car_number, token_key,
	password_changed_at, last_login_at, last_login_ip, created_at, updated_at`

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var role string

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &role,
		&user.TeamID, &user.CarNumber, &user.TokenKey,
		&user.PasswordChangedAt, &user.LastLoginAt, &user.LastLoginIP,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.Role = models.Role(role)
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, models.NormalizeEmail(email)))
}

// Create inserts a new identity. The caller supplies the bcrypt hash; the
// token key and timestamps are generated here.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()
	user.Email = models.NormalizeEmail(user.Email)

	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}
	user.TokenKey = tokenKey

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.PasswordChangedAt == nil {
		user.PasswordChangedAt = &now
	}

	if user.Role == "" {
		user.Role = models.RoleDriver
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role, team_id, car_number, token_key,
			password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name, string(user.Role),
		user.TeamID, user.CarNumber, user.TokenKey,
		user.PasswordChangedAt, user.CreatedAt, user.UpdatedAt,
	))
}

// RecordLogin stamps the latest successful sign-in
func (r *UserRepository) RecordLogin(ctx context.Context, id string, at time.Time, ip string) error {
	query := `UPDATE users SET last_login_at = $1, last_login_ip = $2, updated_at = $1 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, at, ip, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RotateTokenKey invalidates every token signed with the previous key
func (r *UserRepository) RotateTokenKey(ctx context.Context, id string) error {
	tokenKey, err := auth.GenerateTokenKey()
	if err != nil {
		return fmt.Errorf("failed to generate token key: %w", err)
	}

	result, err := r.pool.Exec(ctx,
		`UPDATE users SET token_key = $1, updated_at = NOW() WHERE id = $2`, tokenKey, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
