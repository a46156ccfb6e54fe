package handlers

import (
	"encoding/json"
	"net/http"

	"palmlens-backend/internal/access"
	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/middleware"
	"palmlens-backend/internal/services"
)

// CompatibilityHandler handles compatibility-related HTTP requests
type CompatibilityHandler struct {
	compatService *services.CompatibilityService
	userService   *services.UserService
}

// NewCompatibilityHandler creates a new compatibility handler
func NewCompatibilityHandler(compatService *services.CompatibilityService, userService *services.UserService) *CompatibilityHandler {
	return &CompatibilityHandler{
		compatService: compatService,
		userService:   userService,
	}
}

// CompareRequest is the body of POST /api/v1/compatibility
type CompareRequest struct {
	ProfileAID string `json:"profile_a_id"`
	ProfileBID string `json:"profile_b_id"`
}

// Compare handles POST /api/v1/compatibility
func (h *CompatibilityHandler) Compare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	tier, err := h.userService.Tier(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !access.SectionAccessible(access.SectionCompatibility, tier) {
		respondServiceError(w, apperr.PaymentRequired(
			"Compatibility readings require a paid plan.",
			string(tier), string(access.TierPro),
		))
		return
	}

	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProfileAID == "" || req.ProfileBID == "" {
		respondError(w, "profile_a_id and profile_b_id are required", http.StatusBadRequest)
		return
	}

	report, err := h.compatService.Compare(ctx, userID, req.ProfileAID, req.ProfileBID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
