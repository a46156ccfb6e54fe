package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"palmlens-backend/internal/access"
	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/middleware"
	"palmlens-backend/internal/models"
	"palmlens-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// HoroscopeHandler handles horoscope-related HTTP requests
type HoroscopeHandler struct {
	horoscopeService *services.HoroscopeService
	userService      *services.UserService
}

// NewHoroscopeHandler creates a new horoscope handler
func NewHoroscopeHandler(horoscopeService *services.HoroscopeService, userService *services.UserService) *HoroscopeHandler {
	return &HoroscopeHandler{
		horoscopeService: horoscopeService,
		userService:      userService,
	}
}

// HoroscopeResponse flattens the stored horoscope for clients.
type HoroscopeResponse struct {
	ProfileID string          `json:"profile_id"`
	Period    string          `json:"period"`
	Date      time.Time       `json:"date"`
	Sign      string          `json:"sign"`
	Content   json.RawMessage `json:"content"`
}

// Get handles GET /api/v1/profiles/{id}/horoscope
func (h *HoroscopeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	profileID := chi.URLParam(r, "id")

	period := r.URL.Query().Get("period")
	if period == "" {
		period = services.PeriodDaily
	}

	tier, err := h.userService.Tier(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if tier == access.TierExpired {
		respondServiceError(w, apperr.PaymentRequired(
			"Your trial has expired. Please upgrade to continue.",
			string(tier), string(access.TierPro),
		))
		return
	}
	if period == services.PeriodMonthly && !access.SectionAccessible(access.SectionMonthlyHoroscope, tier) {
		respondServiceError(w, apperr.PaymentRequired(
			"Monthly horoscopes require a paid plan.",
			string(tier), string(access.TierPro),
		))
		return
	}

	horoscope, err := h.horoscopeService.Get(ctx, userID, profileID, period)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newHoroscopeResponse(horoscope))
}

func newHoroscopeResponse(h *models.Horoscope) *HoroscopeResponse {
	return &HoroscopeResponse{
		ProfileID: h.ProfileID,
		Period:    h.Period,
		Date:      h.Date,
		Sign:      h.Sign,
		Content:   json.RawMessage(h.Content),
	}
}
