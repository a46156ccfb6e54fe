package handlers

import (
	"testing"
	"time"

	"palmlens-backend/internal/access"
	"palmlens-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedReading() *models.Reading {
	return &models.Reading{
		ID:        "r-1",
		UserID:    "u-1",
		ProfileID: "p-1",
		Status:    models.ReadingStatusCompleted,
		Analysis: &models.PalmAnalysis{
			Personality:   models.PersonalitySection{Summary: "Curious"},
			LifePath:      models.LifePathSection{Summary: "Steady"},
			Career:        models.CareerSection{Summary: "Creative"},
			Relationships: models.SummarySection{Summary: "Warm"},
			Health:        models.SummarySection{Summary: "Resilient"},
			Lucky:         models.LuckySection{Numbers: []int{3, 7}, Symbol: "key"},
		},
		CreatedAt: time.Now(),
	}
}

func TestReadingViewTrialHidesPremiumSections(t *testing.T) {
	view := newReadingView(completedReading(), access.TierTrial)

	require.NotNil(t, view.Analysis)
	assert.NotNil(t, view.Analysis.Personality)
	assert.NotNil(t, view.Analysis.LifePath)
	assert.NotNil(t, view.Analysis.Career)
	assert.Nil(t, view.Analysis.Relationships)
	assert.Nil(t, view.Analysis.Health)
	assert.Nil(t, view.Analysis.Lucky)
	assert.ElementsMatch(t, []string{
		access.SectionRelationships,
		access.SectionHealth,
		access.SectionLucky,
	}, view.LockedSections)
}

func TestReadingViewProSeesEverything(t *testing.T) {
	view := newReadingView(completedReading(), access.TierPro)

	require.NotNil(t, view.Analysis)
	assert.NotNil(t, view.Analysis.Relationships)
	assert.NotNil(t, view.Analysis.Health)
	assert.NotNil(t, view.Analysis.Lucky)
	assert.Empty(t, view.LockedSections)
}

func TestReadingViewPendingHasNoAnalysis(t *testing.T) {
	reading := &models.Reading{ID: "r-1", Status: models.ReadingStatusPending}
	view := newReadingView(reading, access.TierPro)

	assert.Nil(t, view.Analysis)
	assert.Empty(t, view.LockedSections)
}
