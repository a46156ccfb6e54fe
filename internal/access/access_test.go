package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"palmlens-backend/internal/models"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestResolve(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		user *models.User
		sub  *models.Subscription
		want Tier
	}{
		{
			name: "no subscription, no trial",
			user: &models.User{},
			want: TierExpired,
		},
		{
			name: "trial still running",
			user: &models.User{TrialExpiresAt: timePtr(now.Add(24 * time.Hour))},
			want: TierTrial,
		},
		{
			name: "trial expired",
			user: &models.User{TrialExpiresAt: timePtr(now.Add(-time.Minute))},
			want: TierExpired,
		},
		{
			name: "trial expiring exactly now",
			user: &models.User{TrialExpiresAt: timePtr(now)},
			want: TierExpired,
		},
		{
			name: "active pro subscription",
			user: &models.User{},
			sub:  &models.Subscription{Plan: models.PlanPro, Status: models.SubscriptionStatusActive},
			want: TierPro,
		},
		{
			name: "active ultimate subscription",
			user: &models.User{},
			sub:  &models.Subscription{Plan: models.PlanUltimate, Status: models.SubscriptionStatusActive},
			want: TierUltimate,
		},
		{
			name: "active subscription outranks live trial",
			user: &models.User{TrialExpiresAt: timePtr(now.Add(24 * time.Hour))},
			sub:  &models.Subscription{Plan: models.PlanPro, Status: models.SubscriptionStatusActive},
			want: TierPro,
		},
		{
			name: "active subscription outranks expired trial",
			user: &models.User{TrialExpiresAt: timePtr(now.Add(-24 * time.Hour))},
			sub:  &models.Subscription{Plan: models.PlanUltimate, Status: models.SubscriptionStatusActive},
			want: TierUltimate,
		},
		{
			name: "past_due subscription falls back to trial window",
			user: &models.User{TrialExpiresAt: timePtr(now.Add(time.Hour))},
			sub:  &models.Subscription{Plan: models.PlanPro, Status: models.SubscriptionStatusPastDue},
			want: TierTrial,
		},
		{
			name: "canceled subscription with no trial",
			user: &models.User{},
			sub:  &models.Subscription{Plan: models.PlanPro, Status: models.SubscriptionStatusCanceled},
			want: TierExpired,
		},
		{
			name: "nil user",
			want: TierExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.user, tt.sub, now))
		})
	}
}

func TestProfileLimit(t *testing.T) {
	assert.Equal(t, 1, ProfileLimit(TierExpired))
	assert.Equal(t, 1, ProfileLimit(TierTrial))
	assert.Equal(t, 3, ProfileLimit(TierPro))
	assert.Equal(t, Unlimited, ProfileLimit(TierUltimate))
}

func TestReadingLimit(t *testing.T) {
	assert.Equal(t, 0, ReadingLimit(TierExpired))
	assert.Equal(t, 1, ReadingLimit(TierTrial))
	assert.Equal(t, 10, ReadingLimit(TierPro))
	assert.Equal(t, Unlimited, ReadingLimit(TierUltimate))
}

func TestReadingLimitIsLifetime(t *testing.T) {
	assert.True(t, ReadingLimitIsLifetime(TierTrial))
	assert.False(t, ReadingLimitIsLifetime(TierPro))
	assert.False(t, ReadingLimitIsLifetime(TierUltimate))
}

func TestSectionAccessible(t *testing.T) {
	core := []string{SectionPersonality, SectionLifePath, SectionCareer}
	premium := []string{
		SectionRelationships, SectionHealth, SectionLucky,
		SectionMonthlyHoroscope, SectionCompatibility, SectionPDFExport,
	}

	for _, s := range core {
		assert.True(t, SectionAccessible(s, TierTrial), s)
		assert.True(t, SectionAccessible(s, TierPro), s)
		assert.True(t, SectionAccessible(s, TierUltimate), s)
		assert.False(t, SectionAccessible(s, TierExpired), s)
	}

	for _, s := range premium {
		assert.False(t, SectionAccessible(s, TierTrial), s)
		assert.True(t, SectionAccessible(s, TierPro), s)
		assert.True(t, SectionAccessible(s, TierUltimate), s)
		assert.False(t, SectionAccessible(s, TierExpired), s)
	}

	assert.False(t, SectionAccessible("unknown", TierUltimate))
}
