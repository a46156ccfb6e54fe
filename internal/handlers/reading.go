package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"palmlens-backend/internal/access"
	"palmlens-backend/internal/middleware"
	"palmlens-backend/internal/models"
	"palmlens-backend/internal/services"
	"palmlens-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ReadingHandler handles reading-related HTTP requests
type ReadingHandler struct {
	readingService *services.ReadingService
	userService    *services.UserService
	images         *storage.Gateway
}

// NewReadingHandler creates a new reading handler
func NewReadingHandler(readingService *services.ReadingService, userService *services.UserService, images *storage.Gateway) *ReadingHandler {
	return &ReadingHandler{
		readingService: readingService,
		userService:    userService,
		images:         images,
	}
}

// Create handles POST /api/v1/readings
func (h *ReadingHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := r.ParseMultipartForm(services.MaxUploadSize); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	profileID := r.FormValue("profile_id")
	if profileID == "" {
		respondError(w, "profile_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		respondError(w, "photo file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondError(w, "File must be an image", http.StatusBadRequest)
		return
	}
	if header.Size > services.MaxUploadSize {
		respondError(w, "Image must be smaller than 10MB", http.StatusBadRequest)
		return
	}

	imageKey := storage.ReadingKey(userID, uuid.New().String())
	if _, err := h.images.Upload(ctx, imageKey, file, contentType); err != nil {
		respondError(w, "Failed to store image", http.StatusBadGateway)
		return
	}

	reading, err := h.readingService.Create(ctx, userID, profileID, &imageKey)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.view(ctx, userID, reading))
}

// FromSessionRequest is the body of POST /api/v1/readings/from-session
type FromSessionRequest struct {
	ProfileID string `json:"profile_id"`
}

// FromSession handles POST /api/v1/readings/from-session
func (h *ReadingHandler) FromSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req FromSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProfileID == "" {
		respondError(w, "profile_id is required", http.StatusBadRequest)
		return
	}

	token := SessionToken(r)
	if token == "" {
		respondError(w, "No active session", http.StatusBadRequest)
		return
	}

	reading, err := h.readingService.ConsumeSession(ctx, userID, req.ProfileID, token)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	ClearSessionCookie(w)
	respondJSON(w, http.StatusCreated, h.view(ctx, userID, reading))
}

// List handles GET /api/v1/readings
func (h *ReadingHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var profileID *string
	if p := r.URL.Query().Get("profile_id"); p != "" {
		profileID = &p
	}

	readings, err := h.readingService.List(ctx, userID, profileID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	tier, err := h.userService.Tier(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	views := make([]*readingView, 0, len(readings))
	for _, reading := range readings {
		views = append(views, newReadingView(reading, tier))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"readings": views,
		"total":    len(views),
	})
}

// Get handles GET /api/v1/readings/{id}
func (h *ReadingHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	readingID := chi.URLParam(r, "id")

	reading, err := h.readingService.Get(ctx, readingID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.view(ctx, userID, reading))
}

func (h *ReadingHandler) view(ctx context.Context, userID string, reading *models.Reading) *readingView {
	tier, err := h.userService.Tier(ctx, userID)
	if err != nil {
		tier = access.TierExpired
	}
	return newReadingView(reading, tier)
}

// readingView is the client-facing shape of a reading with premium sections
// withheld below the required tier.
type readingView struct {
	ID             string               `json:"id"`
	ProfileID      string               `json:"profile_id"`
	Status         models.ReadingStatus `json:"status"`
	Analysis       *analysisView        `json:"analysis,omitempty"`
	LockedSections []string             `json:"locked_sections,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

type analysisView struct {
	Personality   *models.PersonalitySection `json:"personality,omitempty"`
	LifePath      *models.LifePathSection    `json:"life_path,omitempty"`
	Career        *models.CareerSection      `json:"career,omitempty"`
	Relationships *models.SummarySection     `json:"relationships,omitempty"`
	Health        *models.SummarySection     `json:"health,omitempty"`
	Lucky         *models.LuckySection       `json:"lucky,omitempty"`
}

func newReadingView(reading *models.Reading, tier access.Tier) *readingView {
	view := &readingView{
		ID:        reading.ID,
		ProfileID: reading.ProfileID,
		Status:    reading.Status,
		CreatedAt: reading.CreatedAt,
	}
	if reading.Analysis == nil {
		return view
	}

	a := reading.Analysis
	filtered := &analysisView{}
	include := func(section string, set func()) {
		if access.SectionAccessible(section, tier) {
			set()
		} else {
			view.LockedSections = append(view.LockedSections, section)
		}
	}
	include(access.SectionPersonality, func() { filtered.Personality = &a.Personality })
	include(access.SectionLifePath, func() { filtered.LifePath = &a.LifePath })
	include(access.SectionCareer, func() { filtered.Career = &a.Career })
	include(access.SectionRelationships, func() { filtered.Relationships = &a.Relationships })
	include(access.SectionHealth, func() { filtered.Health = &a.Health })
	include(access.SectionLucky, func() { filtered.Lucky = &a.Lucky })

	view.Analysis = filtered
	return view
}
