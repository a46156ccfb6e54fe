package services

import (
	"context"
	"testing"
	"time"

	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileFixture(existing int) (*ProfileService, *fakeUsers, *fakeSubs) {
	users := &fakeUsers{users: map[string]*models.User{testUserID: {ID: testUserID}}}
	subs := &fakeSubs{}
	repo := &fakeProfileRepo{profiles: map[string]*models.Profile{}, count: existing}
	svc := NewProfileService(repo, users, subs)
	return svc, users, subs
}

func activateTrial(users *fakeUsers, now time.Time) {
	started := now.AddDate(0, 0, -1)
	expires := now.AddDate(0, 0, 6)
	users.users[testUserID].TrialStartedAt = &started
	users.users[testUserID].TrialExpiresAt = &expires
}

func TestProfileCreateRequiresName(t *testing.T) {
	svc, _, _ := profileFixture(0)

	_, err := svc.Create(context.Background(), testUserID, ProfileInput{})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
}

func TestProfileCreateTrialLimit(t *testing.T) {
	svc, users, _ := profileFixture(1)
	activateTrial(users, time.Now())

	// Trial users keep the default profile only.
	_, err := svc.Create(context.Background(), testUserID, ProfileInput{Name: "Mom"})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindPaymentRequired, appErr.Kind)
	assert.Equal(t, "pro", appErr.RequiredTier)
}

func TestProfileCreateAssignsIdentity(t *testing.T) {
	svc, users, _ := profileFixture(0)
	activateTrial(users, time.Now())

	profile, err := svc.Create(context.Background(), testUserID, ProfileInput{Name: "Mom"})
	require.NoError(t, err)

	// The repository inserts the struct verbatim, so the service must fill
	// in the row identity before handing it over.
	_, err = uuid.Parse(profile.ID)
	require.NoError(t, err)
	assert.Equal(t, testUserID, profile.UserID)
	assert.False(t, profile.CreatedAt.IsZero())
}

func TestProfileCreateProLimit(t *testing.T) {
	now := time.Now()
	end := now.AddDate(0, 1, 0)

	svc, _, subs := profileFixture(2)
	subs.sub = &models.Subscription{
		UserID: testUserID, Plan: models.PlanPro,
		Status: models.SubscriptionStatusActive, CurrentPeriodEnd: &end,
	}

	profile, err := svc.Create(context.Background(), testUserID, ProfileInput{Name: "Mom"})
	require.NoError(t, err)
	assert.Equal(t, "Mom", profile.Name)

	svc2, _, subs2 := profileFixture(3)
	subs2.sub = subs.sub
	_, err = svc2.Create(context.Background(), testUserID, ProfileInput{Name: "Dad"})
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindPaymentRequired, appErr.Kind)
}

func TestProfileCreateUltimateUnlimited(t *testing.T) {
	now := time.Now()
	end := now.AddDate(0, 1, 0)

	svc, _, subs := profileFixture(50)
	subs.sub = &models.Subscription{
		UserID: testUserID, Plan: models.PlanUltimate,
		Status: models.SubscriptionStatusActive, CurrentPeriodEnd: &end,
	}

	_, err := svc.Create(context.Background(), testUserID, ProfileInput{Name: "Friend"})
	assert.NoError(t, err)
}
