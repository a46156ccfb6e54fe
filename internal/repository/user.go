package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"palmlens-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, auth_id, email, name, trial_started_at, trial_expires_at, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.AuthID, &user.Email, &user.Name,
		&user.TrialStartedAt, &user.TrialExpiresAt, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

// GetByAuthID retrieves a user by the identity provider's subject identifier
func (r *UserRepository) GetByAuthID(ctx context.Context, authID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE auth_id = $1`
	return scanUser(r.db.QueryRow(ctx, query, authID))
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// Ensure returns the user for an identity-provider subject, creating the user
// and their default profile on first authentication.
func (r *UserRepository) Ensure(ctx context.Context, authID, email string, name *string) (*models.User, error) {
	user, err := r.GetByAuthID(ctx, authID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	userID := uuid.New().String()
	insertUser := `
		INSERT INTO users (id, auth_id, email, name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (auth_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insertUser, userID, authID, email, name, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if tag.RowsAffected() > 0 {
		insertProfile := `
			INSERT INTO profiles (id, user_id, name, is_default, created_at)
			VALUES ($1, $2, 'Me', true, $3)
		`
		if _, err := tx.Exec(ctx, insertProfile, uuid.New().String(), userID, now); err != nil {
			return nil, fmt.Errorf("failed to create default profile: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit user creation: %w", err)
	}

	return r.GetByAuthID(ctx, authID)
}

// StartTrial sets the trial window exactly once; repeated calls are no-ops.
func (r *UserRepository) StartTrial(ctx context.Context, userID string, startedAt, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET trial_started_at = $2, trial_expires_at = $3
		WHERE id = $1 AND trial_started_at IS NULL
	`
	_, err := r.db.Exec(ctx, query, userID, startedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to start trial: %w", err)
	}
	return nil
}
