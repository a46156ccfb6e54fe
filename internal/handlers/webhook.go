package handlers

import (
	"io"
	"net/http"

	"palmlens-backend/internal/services"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v79/webhook"
)

// WebhookHandler handles Stripe webhook deliveries
type WebhookHandler struct {
	billingService *services.BillingService
	webhookSecret  string
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(billingService *services.BillingService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		billingService: billingService,
		webhookSecret:  webhookSecret,
	}
}

// HandleStripe handles POST /api/v1/webhooks/stripe
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read webhook body")
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		r.Header.Get("Stripe-Signature"),
		h.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Warn().Err(err).Msg("Stripe webhook signature verification failed")
		respondError(w, "signature verification failed", http.StatusBadRequest)
		return
	}

	if err := h.billingService.HandleEvent(r.Context(), event); err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to handle Stripe event")
		respondError(w, "failed to process event", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
