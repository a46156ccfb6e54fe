package handlers

import (
	"net/http"
	"time"

	"palmlens-backend/internal/services"
)

const sessionCookie = "palm_session"

// SessionHandler handles the anonymous pre-registration flow
type SessionHandler struct {
	sessionService *services.SessionService
	cookieTTL      time.Duration
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *services.SessionService, cookieTTL time.Duration) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		cookieTTL:      cookieTTL,
	}
}

// Upload handles POST /api/v1/session/upload
func (h *SessionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(services.MaxUploadSize); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		respondError(w, "photo file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	dob := r.FormValue("dob")
	token, err := h.sessionService.Upload(r.Context(), file, header.Size, header.Header.Get("Content-Type"), dob)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.setCookie(w, token, h.cookieTTL)

	state, err := h.sessionService.Get(r.Context(), token)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, state)
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}

	state, err := h.sessionService.Get(r.Context(), token)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// Confirm handles POST /api/v1/session/confirm
func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}

	result, err := h.sessionService.Confirm(r.Context(), token)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) token(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		respondError(w, "No active session", http.StatusBadRequest)
		return "", false
	}
	return cookie.Value, true
}

func (h *SessionHandler) setCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie after a successful
// conversion into a durable reading.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken reads the session token from the request cookie, if present.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}
