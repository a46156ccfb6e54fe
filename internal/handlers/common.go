package handlers

import (
	"encoding/json"
	"net/http"

	"palmlens-backend/internal/apperr"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error        string `json:"error"`
	Kind         string `json:"kind,omitempty"`
	CurrentTier  string `json:"current_tier,omitempty"`
	RequiredTier string `json:"required_tier,omitempty"`
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondServiceError maps a service error onto an HTTP response. Classified
// errors carry their own status and client message; anything else is a 500
// with the detail kept out of the response body.
func respondServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok {
		respondJSON(w, appErr.HTTPStatus(), ErrorResponse{
			Error:        appErr.Message,
			Kind:         string(appErr.Kind),
			CurrentTier:  appErr.CurrentTier,
			RequiredTier: appErr.RequiredTier,
		})
		return
	}

	log.Error().Err(err).Msg("Unhandled service error")
	respondError(w, "Internal server error", http.StatusInternalServerError)
}
