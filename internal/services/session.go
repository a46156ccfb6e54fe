package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/session"
	"palmlens-backend/internal/storage"
	"palmlens-backend/internal/vision"

	"github.com/google/uuid"
)

// MaxUploadSize caps palm photo uploads.
const MaxUploadSize = 10 << 20

type sessionStore interface {
	Create(ctx context.Context, photoKey, dob string) (string, error)
	Get(ctx context.Context, token string) (*session.Record, error)
	Confirm(ctx context.Context, token string) (bool, error)
}

type imageUploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	ImageURL(ctx context.Context, key string) string
}

type palmValidator interface {
	ValidatePalm(ctx context.Context, imageURL string) vision.Validation
}

// SessionService runs the anonymous pre-registration flow: upload a palm
// photo, have it validated, and confirm it for later conversion into a
// durable reading once the user signs up.
type SessionService struct {
	sessions  sessionStore
	images    imageUploader
	validator palmValidator
}

// NewSessionService creates a new session service
func NewSessionService(sessions sessionStore, images imageUploader, validator palmValidator) *SessionService {
	return &SessionService{
		sessions:  sessions,
		images:    images,
		validator: validator,
	}
}

// State is the client-facing view of a session.
type State struct {
	PhotoURL  string `json:"photo_url"`
	DOB       string `json:"dob,omitempty"`
	Confirmed bool   `json:"confirmed"`
}

// Upload stores an anonymous palm photo and opens a session for it. The
// returned token is the only handle to the session.
func (s *SessionService) Upload(ctx context.Context, body io.Reader, size int64, contentType, dob string) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.Validation("File must be an image.")
	}
	if size > MaxUploadSize {
		return "", apperr.Validation("Image must be smaller than 10MB.")
	}

	key := storage.TempKey(uuid.New().String())
	if _, err := s.images.Upload(ctx, key, body, contentType); err != nil {
		return "", apperr.Upstream("Failed to store image. Please try again.", err)
	}

	token, err := s.sessions.Create(ctx, key, dob)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return token, nil
}

// Get returns the current state of a session.
func (s *SessionService) Get(ctx context.Context, token string) (*State, error) {
	rec, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperr.NotFound("Session expired. Please start over.")
		}
		return nil, err
	}
	return &State{
		PhotoURL:  s.images.ImageURL(ctx, rec.PhotoKey),
		DOB:       rec.DOB,
		Confirmed: rec.Confirmed,
	}, nil
}

// Confirm runs the palm check on the session photo and, only when it passes,
// marks the session confirmed. A rejected photo leaves the session
// unconfirmed so the user can upload a different one.
func (s *SessionService) Confirm(ctx context.Context, token string) (*vision.Validation, error) {
	rec, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperr.NotFound("Session expired. Please start over.")
		}
		return nil, err
	}
	if rec.Confirmed {
		return &vision.Validation{Valid: true, Reason: "Already confirmed"}, nil
	}

	result := s.validator.ValidatePalm(ctx, s.images.ImageURL(ctx, rec.PhotoKey))
	if !result.Valid {
		return &result, nil
	}

	ok, err := s.sessions.Confirm(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("Session expired. Please start over.")
	}
	return &result, nil
}
