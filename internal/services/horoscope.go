package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/models"
	"palmlens-backend/internal/repository"
	"palmlens-backend/internal/zodiac"
)

// Horoscope periods.
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

type horoscopeStore interface {
	Get(ctx context.Context, profileID, period string, date time.Time) (*models.Horoscope, error)
	Upsert(ctx context.Context, h *models.Horoscope) error
}

type textGenerator interface {
	GenerateText(ctx context.Context, prompt string) ([]byte, error)
}

// HoroscopeService generates and caches zodiac horoscopes per profile. A
// horoscope is generated once per profile, period and date; later requests
// for the same key are served from the cache.
type HoroscopeService struct {
	horoscopes horoscopeStore
	profiles   profileRepo
	vision     textGenerator
	now        func() time.Time
}

// NewHoroscopeService creates a new horoscope service
func NewHoroscopeService(horoscopes horoscopeStore, profiles profileRepo, vision textGenerator) *HoroscopeService {
	return &HoroscopeService{
		horoscopes: horoscopes,
		profiles:   profiles,
		vision:     vision,
		now:        time.Now,
	}
}

// Get returns the horoscope for the profile and period, generating it on
// cache miss. The profile must carry a date of birth.
func (s *HoroscopeService) Get(ctx context.Context, userID, profileID, period string) (*models.Horoscope, error) {
	if period != PeriodDaily && period != PeriodMonthly {
		return nil, apperr.Validation("Period must be daily or monthly.")
	}

	profile, err := s.profiles.GetOwned(ctx, profileID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Profile not found")
		}
		return nil, err
	}
	if profile.DOB == nil {
		return nil, apperr.Validation("A date of birth is required for horoscopes.")
	}

	date := s.periodDate(period)
	cached, err := s.horoscopes.Get(ctx, profileID, period, date)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	sign := zodiac.SignFor(*profile.DOB)
	content, err := s.vision.GenerateText(ctx, horoscopePrompt(sign, period, date))
	if err != nil {
		return nil, err
	}
	if !json.Valid(content) {
		return nil, apperr.Upstream("Horoscope generation failed. Please try again.", fmt.Errorf("model returned invalid JSON"))
	}

	horoscope := &models.Horoscope{
		ProfileID: profileID,
		Period:    period,
		Date:      date,
		Sign:      sign,
		Content:   content,
	}
	if err := s.horoscopes.Upsert(ctx, horoscope); err != nil {
		return nil, err
	}
	return horoscope, nil
}

// periodDate normalizes the cache key date: today for daily, the first of
// the month for monthly, both in UTC.
func (s *HoroscopeService) periodDate(period string) time.Time {
	now := s.now().UTC()
	if period == PeriodMonthly {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func horoscopePrompt(sign, period string, date time.Time) string {
	span := date.Format("January 2, 2006")
	if period == PeriodMonthly {
		span = date.Format("January 2006")
	}
	return fmt.Sprintf(`You are an experienced astrologer. Write a %s horoscope for %s covering %s.

Respond with JSON only, exactly this shape:
{
  "overview": "<2-3 sentences>",
  "love": "<1-2 sentences>",
  "career": "<1-2 sentences>",
  "health": "<1-2 sentences>",
  "lucky_numbers": [<number>, <number>, <number>],
  "mood": "<one word>"
}`, period, sign, span)
}
