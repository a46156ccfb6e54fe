package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"palmlens-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository handles database operations for profiles
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, user_id, name, dob, avatar_emoji, is_default, created_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.DOB, &p.AvatarEmoji, &p.IsDefault, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	return &p, nil
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (id, user_id, name, dob, avatar_emoji, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		profile.ID, profile.UserID, profile.Name, profile.DOB,
		profile.AvatarEmoji, profile.IsDefault, profile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetOwned retrieves a profile only if it belongs to the given user
func (r *ProfileRepository) GetOwned(ctx context.Context, id, userID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 AND user_id = $2`
	return scanProfile(r.db.QueryRow(ctx, query, id, userID))
}

// ListByUserID retrieves all profiles for a user, default profile first
func (r *ProfileRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1 ORDER BY is_default DESC, created_at ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

// CountByUserID counts a user's profiles
func (r *ProfileRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM profiles WHERE user_id = $1`
	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}

// SetDOBIfEmpty backfills a profile's date of birth captured during an
// anonymous session, without overwriting an existing value
func (r *ProfileRepository) SetDOBIfEmpty(ctx context.Context, id string, dob time.Time) error {
	query := `UPDATE profiles SET dob = $2 WHERE id = $1 AND dob IS NULL`
	_, err := r.db.Exec(ctx, query, id, dob)
	if err != nil {
		return fmt.Errorf("failed to set profile dob: %w", err)
	}
	return nil
}
