package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"palmlens-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTerminal is returned when a state change targets a reading that is
// already completed or failed.
var ErrTerminal = errors.New("reading already finalized")

// ReadingRepository handles database operations for readings
type ReadingRepository struct {
	db *pgxpool.Pool
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *pgxpool.Pool) *ReadingRepository {
	return &ReadingRepository{db: db}
}

const readingColumns = `id, user_id, profile_id, status, image_key, analysis, created_at`

func scanReading(row pgx.Row) (*models.Reading, error) {
	var reading models.Reading
	var analysisJSON []byte
	err := row.Scan(
		&reading.ID, &reading.UserID, &reading.ProfileID, &reading.Status,
		&reading.ImageKey, &analysisJSON, &reading.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reading not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}
	if analysisJSON != nil {
		var analysis models.PalmAnalysis
		if err := json.Unmarshal(analysisJSON, &analysis); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
		}
		reading.Analysis = &analysis
	}
	return &reading, nil
}

// CreateWithQuota inserts a pending reading after counting the user's
// existing readings inside one transaction. The user row is locked so two
// concurrent creations near the quota boundary cannot both slip through.
// A limit below zero means unbounded; lifetime selects the counting window.
func (r *ReadingRepository) CreateWithQuota(ctx context.Context, reading *models.Reading, limit int, lifetime bool, windowStart time.Time) error {
	if limit == 0 {
		return ErrQuotaExceeded
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if limit > 0 {
		var locked string
		err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, reading.UserID).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("user not found: %w", ErrNotFound)
			}
			return fmt.Errorf("failed to lock user row: %w", err)
		}

		var count int
		if lifetime {
			err = tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM readings WHERE user_id = $1`,
				reading.UserID,
			).Scan(&count)
		} else {
			err = tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM readings WHERE user_id = $1 AND created_at >= $2`,
				reading.UserID, windowStart,
			).Scan(&count)
		}
		if err != nil {
			return fmt.Errorf("failed to count readings: %w", err)
		}

		if count >= limit {
			return ErrQuotaExceeded
		}
	}

	insert := `
		INSERT INTO readings (id, user_id, profile_id, status, image_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.Exec(ctx, insert,
		reading.ID, reading.UserID, reading.ProfileID, reading.Status,
		reading.ImageKey, reading.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reading creation: %w", err)
	}
	return nil
}

// GetOwned retrieves a reading only if it belongs to the given user
func (r *ReadingRepository) GetOwned(ctx context.Context, id, userID string) (*models.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE id = $1 AND user_id = $2`
	return scanReading(r.db.QueryRow(ctx, query, id, userID))
}

// GetByID retrieves a reading by ID
func (r *ReadingRepository) GetByID(ctx context.Context, id string) (*models.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE id = $1`
	return scanReading(r.db.QueryRow(ctx, query, id))
}

// ListByUser retrieves a user's readings, optionally filtered by profile
func (r *ReadingRepository) ListByUser(ctx context.Context, userID string, profileID *string) ([]*models.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE user_id = $1`
	args := []any{userID}
	if profileID != nil {
		query += ` AND profile_id = $2`
		args = append(args, *profileID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	var readings []*models.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating readings: %w", err)
	}
	return readings, nil
}

// LatestCompletedByProfile retrieves the most recent completed reading for a
// profile
func (r *ReadingRepository) LatestCompletedByProfile(ctx context.Context, profileID string) (*models.Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE profile_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanReading(r.db.QueryRow(ctx, query, profileID, models.ReadingStatusCompleted))
}

// CountByUser counts every reading a user has ever made
func (r *ReadingRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM readings WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}

// CountByUserSince counts a user's readings created at or after the cutoff
func (r *ReadingRepository) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM readings WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}

// MarkProcessing transitions a pending reading to processing
func (r *ReadingRepository) MarkProcessing(ctx context.Context, id string) error {
	query := `UPDATE readings SET status = $1 WHERE id = $2 AND status = $3`
	return r.transition(ctx, id, query, models.ReadingStatusProcessing, id, models.ReadingStatusPending)
}

// Complete transitions a reading to completed, attaching the analysis
// payload. The payload and the terminal status are written together so one
// is never present without the other.
func (r *ReadingRepository) Complete(ctx context.Context, id string, analysis *models.PalmAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	query := `UPDATE readings SET status = $1, analysis = $2 WHERE id = $3 AND status IN ($4, $5)`
	return r.transition(ctx, id, query,
		models.ReadingStatusCompleted, data, id,
		models.ReadingStatusPending, models.ReadingStatusProcessing)
}

// Fail transitions a reading to failed without a payload
func (r *ReadingRepository) Fail(ctx context.Context, id string) error {
	query := `UPDATE readings SET status = $1 WHERE id = $2 AND status IN ($3, $4)`
	return r.transition(ctx, id, query,
		models.ReadingStatusFailed, id,
		models.ReadingStatusPending, models.ReadingStatusProcessing)
}

func (r *ReadingRepository) transition(ctx context.Context, id, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update reading status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing changed: the reading is either gone or already terminal.
	var status models.ReadingStatus
	err = r.db.QueryRow(ctx, `SELECT status FROM readings WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("reading not found: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to check reading status: %w", err)
	}
	return fmt.Errorf("reading %s is %s: %w", id, status, ErrTerminal)
}

// FailStuck marks non-terminal readings older than the cutoff as failed so a
// lost provider response cannot leave a reading pending forever. Returns the
// number of readings failed.
func (r *ReadingRepository) FailStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE readings
		SET status = $1
		WHERE status IN ($2, $3) AND created_at < $4
	`
	tag, err := r.db.Exec(ctx, query,
		models.ReadingStatusFailed,
		models.ReadingStatusPending, models.ReadingStatusProcessing,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stuck readings: %w", err)
	}
	return tag.RowsAffected(), nil
}
