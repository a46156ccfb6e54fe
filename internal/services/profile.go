package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"palmlens-backend/internal/access"
	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/models"
	"palmlens-backend/internal/repository"

	"github.com/google/uuid"
)

type profileRepo interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetOwned(ctx context.Context, id, userID string) (*models.Profile, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Profile, error)
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// ProfileService manages the people a user runs readings for.
type ProfileService struct {
	profiles profileRepo
	users    userStore
	subs     subscriptionStore
	now      func() time.Time
}

// NewProfileService creates a new profile service
func NewProfileService(profiles profileRepo, users userStore, subs subscriptionStore) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		users:    users,
		subs:     subs,
		now:      time.Now,
	}
}

// ProfileInput is the payload for adding a profile.
type ProfileInput struct {
	Name        string     `json:"name"`
	DOB         *time.Time `json:"dob,omitempty"`
	AvatarEmoji *string    `json:"avatar_emoji,omitempty"`
}

// Create adds a profile if the user's tier allows another one.
func (s *ProfileService) Create(ctx context.Context, userID string, input ProfileInput) (*models.Profile, error) {
	if input.Name == "" {
		return nil, apperr.Validation("Profile name is required.")
	}

	tier, err := s.resolveTier(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := access.ProfileLimit(tier)
	if limit != access.Unlimited {
		count, err := s.profiles.CountByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count profiles: %w", err)
		}
		if count >= limit {
			return nil, apperr.PaymentRequired("Profile limit reached for your plan.", string(tier), string(access.TierPro))
		}
	}

	profile := &models.Profile{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        input.Name,
		DOB:         input.DOB,
		AvatarEmoji: input.AvatarEmoji,
		CreatedAt:   s.now(),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Get returns a profile owned by the user.
func (s *ProfileService) Get(ctx context.Context, userID, profileID string) (*models.Profile, error) {
	profile, err := s.profiles.GetOwned(ctx, profileID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Profile not found")
		}
		return nil, err
	}
	return profile, nil
}

// List returns the user's profiles, default profile first.
func (s *ProfileService) List(ctx context.Context, userID string) ([]*models.Profile, error) {
	return s.profiles.ListByUserID(ctx, userID)
}

func (s *ProfileService) resolveTier(ctx context.Context, userID string) (access.Tier, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		sub = nil
	}

	return access.Resolve(user, sub, s.now()), nil
}
