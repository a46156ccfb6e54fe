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

// SubscriptionRepository handles database operations for subscriptions
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByUserID retrieves the subscription owned by a user
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	query := `
		SELECT id, user_id, stripe_customer_id, stripe_subscription_id,
		       plan, status, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`
	var sub models.Subscription
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&sub.ID, &sub.UserID, &sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.Plan, &sub.Status, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("subscription not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// Upsert creates or updates the subscription for a user from a billing
// webhook event. One subscription per user.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions
			(id, user_id, stripe_customer_id, stripe_subscription_id,
			 plan, status, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		uuid.New().String(), sub.UserID, sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.Plan, sub.Status, sub.CurrentPeriodEnd, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// UpdateStatusByStripeID sets the subscription status by the billing
// provider's subscription identifier
func (r *SubscriptionRepository) UpdateStatusByStripeID(ctx context.Context, stripeSubscriptionID string, status models.SubscriptionStatus) error {
	query := `UPDATE subscriptions SET status = $1, updated_at = $2 WHERE stripe_subscription_id = $3`
	_, err := r.db.Exec(ctx, query, status, time.Now(), stripeSubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	return nil
}

// ExpireLapsed marks active subscriptions whose period has ended as expired.
// Returns the number of rows changed.
func (r *SubscriptionRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = $1, updated_at = $2
		WHERE status = $3 AND current_period_end IS NOT NULL AND current_period_end <= $2
	`
	tag, err := r.db.Exec(ctx, query, models.SubscriptionStatusExpired, now, models.SubscriptionStatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}
