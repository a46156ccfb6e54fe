package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"palmlens-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v79"
)

type subscriptionWriter interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
	UpdateStatusByStripeID(ctx context.Context, stripeSubscriptionID string, status models.SubscriptionStatus) error
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}

// BillingService applies Stripe subscription events to local state. Signature
// verification happens at the handler; events arriving here are trusted.
type BillingService struct {
	subs subscriptionWriter
}

// NewBillingService creates a new billing service
func NewBillingService(subs subscriptionWriter) *BillingService {
	return &BillingService{subs: subs}
}

// HandleEvent processes a verified Stripe event. Unhandled event types are
// ignored so the webhook endpoint can be subscribed broadly.
func (s *BillingService) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		sub, err := unmarshalSubscription(event)
		if err != nil {
			return err
		}
		local, err := SubscriptionFromStripe(sub)
		if err != nil {
			log.Warn().Str("stripe_subscription", sub.ID).Err(err).Msg("skipping unmappable subscription event")
			return nil
		}
		return s.subs.Upsert(ctx, local)

	case "customer.subscription.deleted":
		sub, err := unmarshalSubscription(event)
		if err != nil {
			return err
		}
		return s.subs.UpdateStatusByStripeID(ctx, sub.ID, models.SubscriptionStatusCanceled)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to unmarshal invoice: %w", err)
		}
		if invoice.Subscription == nil {
			return nil
		}
		return s.subs.UpdateStatusByStripeID(ctx, invoice.Subscription.ID, models.SubscriptionStatusPastDue)

	default:
		// Intentionally ignore unhandled events.
		return nil
	}
}

// ExpireLapsed downgrades active subscriptions whose paid period has ended.
func (s *BillingService) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	return s.subs.ExpireLapsed(ctx, now)
}

func unmarshalSubscription(event stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	return &sub, nil
}

// SubscriptionFromStripe maps a Stripe subscription onto the local model.
// The owning user is carried in subscription metadata set at checkout time.
func SubscriptionFromStripe(sub *stripe.Subscription) (*models.Subscription, error) {
	userID := sub.Metadata["user_id"]
	if userID == "" {
		return nil, fmt.Errorf("subscription %s has no user_id metadata", sub.ID)
	}

	local := &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: sub.ID,
		Plan:                 planFromStripe(sub),
		Status:               statusFromStripe(sub.Status),
	}
	if sub.Customer != nil {
		local.StripeCustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		local.CurrentPeriodEnd = &end
	}
	return local, nil
}

func planFromStripe(sub *stripe.Subscription) models.SubscriptionPlan {
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if strings.Contains(strings.ToLower(item.Price.LookupKey), "ultimate") {
				return models.PlanUltimate
			}
		}
	}
	return models.PlanPro
}

func statusFromStripe(status stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		return models.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusExpired
	}
}
