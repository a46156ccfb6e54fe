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

// HoroscopeRepository caches generated horoscopes per profile and date
type HoroscopeRepository struct {
	db *pgxpool.Pool
}

// NewHoroscopeRepository creates a new horoscope repository
func NewHoroscopeRepository(db *pgxpool.Pool) *HoroscopeRepository {
	return &HoroscopeRepository{db: db}
}

// Get retrieves a cached horoscope for a profile, period and date
func (r *HoroscopeRepository) Get(ctx context.Context, profileID, period string, date time.Time) (*models.Horoscope, error) {
	query := `
		SELECT id, profile_id, period, date, sign, content, created_at
		FROM horoscopes
		WHERE profile_id = $1 AND period = $2 AND date = $3
	`
	var h models.Horoscope
	err := r.db.QueryRow(ctx, query, profileID, period, date).Scan(
		&h.ID, &h.ProfileID, &h.Period, &h.Date, &h.Sign, &h.Content, &h.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("horoscope not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get horoscope: %w", err)
	}
	return &h, nil
}

// Upsert stores a generated horoscope, replacing any cached content for the
// same profile, period and date
func (r *HoroscopeRepository) Upsert(ctx context.Context, h *models.Horoscope) error {
	query := `
		INSERT INTO horoscopes (id, profile_id, period, date, sign, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (profile_id, period, date) DO UPDATE SET
			sign = EXCLUDED.sign,
			content = EXCLUDED.content
	`
	_, err := r.db.Exec(ctx, query,
		uuid.New().String(), h.ProfileID, h.Period, h.Date, h.Sign, h.Content, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert horoscope: %w", err)
	}
	return nil
}
