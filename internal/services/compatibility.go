package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/models"
	"palmlens-backend/internal/repository"
	"palmlens-backend/internal/zodiac"
)

type latestReadingStore interface {
	LatestCompletedByProfile(ctx context.Context, profileID string) (*models.Reading, error)
}

type compatibilityGenerator interface {
	GenerateCompatibility(ctx context.Context, prompt string, wantZodiac bool) (*models.CompatibilityReport, error)
}

// CompatibilityService compares the palm analyses of two profiles. Tier
// gating happens at the handler; the service only enforces data
// prerequisites.
type CompatibilityService struct {
	profiles profileRepo
	readings latestReadingStore
	vision   compatibilityGenerator
}

// NewCompatibilityService creates a new compatibility service
func NewCompatibilityService(profiles profileRepo, readings latestReadingStore, vision compatibilityGenerator) *CompatibilityService {
	return &CompatibilityService{
		profiles: profiles,
		readings: readings,
		vision:   vision,
	}
}

// Compare generates a compatibility report from the latest completed reading
// of each profile. Both profiles must be owned by the user and distinct.
func (s *CompatibilityService) Compare(ctx context.Context, userID, profileAID, profileBID string) (*models.CompatibilityReport, error) {
	if profileAID == profileBID {
		return nil, apperr.Validation("Cannot compare a profile with itself.")
	}

	profileA, err := s.ownedProfile(ctx, userID, profileAID)
	if err != nil {
		return nil, err
	}
	profileB, err := s.ownedProfile(ctx, userID, profileBID)
	if err != nil {
		return nil, err
	}

	readingA, err := s.latestReading(ctx, profileA)
	if err != nil {
		return nil, err
	}
	readingB, err := s.latestReading(ctx, profileB)
	if err != nil {
		return nil, err
	}

	var signA, signB string
	wantZodiac := profileA.DOB != nil && profileB.DOB != nil
	if wantZodiac {
		signA = zodiac.SignFor(*profileA.DOB)
		signB = zodiac.SignFor(*profileB.DOB)
	}

	prompt, err := buildCompatibilityPrompt(profileA, profileB, readingA.Analysis, readingB.Analysis, signA, signB)
	if err != nil {
		return nil, err
	}

	report, err := s.vision.GenerateCompatibility(ctx, prompt, wantZodiac)
	if err != nil {
		return nil, err
	}

	report.ProfileA = models.ProfileRef{Name: profileA.Name, Emoji: profileA.AvatarEmoji}
	report.ProfileB = models.ProfileRef{Name: profileB.Name, Emoji: profileB.AvatarEmoji}
	if report.ZodiacCompatibility != nil {
		report.ZodiacCompatibility.SignA = signA
		report.ZodiacCompatibility.SignB = signB
	}
	return report, nil
}

func (s *CompatibilityService) ownedProfile(ctx context.Context, userID, profileID string) (*models.Profile, error) {
	profile, err := s.profiles.GetOwned(ctx, profileID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Profile not found")
		}
		return nil, err
	}
	return profile, nil
}

func (s *CompatibilityService) latestReading(ctx context.Context, profile *models.Profile) (*models.Reading, error) {
	reading, err := s.readings.LatestCompletedByProfile(ctx, profile.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Validation(fmt.Sprintf("%s needs a completed palm reading first.", profile.Name))
		}
		return nil, err
	}
	if reading.Analysis == nil {
		return nil, apperr.Validation(fmt.Sprintf("%s needs a completed palm reading first.", profile.Name))
	}
	return reading, nil
}

// buildCompatibilityPrompt renders the same prompt for the same inputs so
// repeated comparisons of an unchanged pair stay stable.
func buildCompatibilityPrompt(a, b *models.Profile, analysisA, analysisB *models.PalmAnalysis, signA, signB string) (string, error) {
	dataA, err := json.Marshal(analysisA)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis: %w", err)
	}
	dataB, err := json.Marshal(analysisB)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You are an expert palm reader and relationship counselor. ")
	sb.WriteString("Compare the palm readings of two people and produce a compatibility report.\n\n")
	fmt.Fprintf(&sb, "Person A: %s\n", a.Name)
	writeDOBLine(&sb, a.DOB, signA)
	fmt.Fprintf(&sb, "Palm reading: %s\n\n", dataA)
	fmt.Fprintf(&sb, "Person B: %s\n", b.Name)
	writeDOBLine(&sb, b.DOB, signB)
	fmt.Fprintf(&sb, "Palm reading: %s\n\n", dataB)
	sb.WriteString(`Respond with JSON only, exactly this shape:
{
  "overall_score": <0-100>,
  "summary": "<2-3 sentences>",
  "strengths": ["<strength>", ...],
  "challenges": ["<challenge>", ...],
  "advice": "<1-2 sentences>",
  "categories": {
    "communication": {"score": <0-100>, "description": "<1 sentence>"},
    "emotional": {"score": <0-100>, "description": "<1 sentence>"},
    "lifestyle": {"score": <0-100>, "description": "<1 sentence>"},
    "goals": {"score": <0-100>, "description": "<1 sentence>"}
  }`)
	if signA != "" && signB != "" {
		sb.WriteString(`,
  "zodiac_compatibility": {"sign_a": "` + signA + `", "sign_b": "` + signB + `", "description": "<1-2 sentences>"}`)
	}
	sb.WriteString("\n}")
	return sb.String(), nil
}

func writeDOBLine(sb *strings.Builder, dob *time.Time, sign string) {
	if dob == nil {
		return
	}
	fmt.Fprintf(sb, "Date of birth: %s (%s)\n", dob.Format("2006-01-02"), sign)
}
