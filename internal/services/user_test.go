package services

import (
	"context"
	"testing"
	"time"

	"palmlens-backend/internal/access"
	"palmlens-backend/internal/models"
	"palmlens-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	users map[string]*models.User
}

func (f *fakeUserRepo) Ensure(ctx context.Context, authID, email string, name *string) (*models.User, error) {
	for _, u := range f.users {
		if u.AuthID == authID {
			return u, nil
		}
	}
	u := &models.User{ID: "u-" + authID, AuthID: authID, Email: email, Name: name}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type fakeReadingCounter struct {
	total     int
	thisMonth int
}

func (f *fakeReadingCounter) CountByUser(ctx context.Context, userID string) (int, error) {
	return f.total, nil
}

func (f *fakeReadingCounter) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return f.thisMonth, nil
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewUserService(&fakeUserRepo{users: map[string]*models.User{}}, &fakeSubs{}, &fakeReadingCounter{}, "test-secret")

	name := "Alice"
	token, err := svc.IssueToken(&Identity{AuthID: "auth-1", Email: "alice@example.com", Name: &name}, time.Hour)
	require.NoError(t, err)

	identity, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "auth-1", identity.AuthID)
	assert.Equal(t, "alice@example.com", identity.Email)
	require.NotNil(t, identity.Name)
	assert.Equal(t, "Alice", *identity.Name)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewUserService(&fakeUserRepo{users: map[string]*models.User{}}, &fakeSubs{}, &fakeReadingCounter{}, "secret-a")
	verifier := NewUserService(&fakeUserRepo{users: map[string]*models.User{}}, &fakeSubs{}, &fakeReadingCounter{}, "secret-b")

	token, err := issuer.IssueToken(&Identity{AuthID: "auth-1"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewUserService(&fakeUserRepo{users: map[string]*models.User{}}, &fakeSubs{}, &fakeReadingCounter{}, "test-secret")

	token, err := svc.IssueToken(&Identity{AuthID: "auth-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestAccessInfoTrialUsesLifetimeCount(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	started := now.AddDate(0, 0, -1)
	expires := now.AddDate(0, 0, 6)

	users := &fakeUserRepo{users: map[string]*models.User{
		"u-1": {ID: "u-1", TrialStartedAt: &started, TrialExpiresAt: &expires},
	}}
	counter := &fakeReadingCounter{total: 1, thisMonth: 0}
	svc := NewUserService(users, &fakeSubs{}, counter, "test-secret")
	svc.now = func() time.Time { return now }

	info, err := svc.AccessInfo(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, access.TierTrial, info.Tier)
	assert.Equal(t, 1, info.ReadingLimit)
	assert.Equal(t, 1, info.ReadingsUsed, "trial quota counts all readings ever")
	assert.Equal(t, &expires, info.TrialExpiresAt)
}

func TestAccessInfoSubscriptionOutranksTrial(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	started := now.AddDate(0, 0, -1)
	expires := now.AddDate(0, 0, 6)
	end := now.AddDate(0, 1, 0)

	users := &fakeUserRepo{users: map[string]*models.User{
		"u-1": {ID: "u-1", TrialStartedAt: &started, TrialExpiresAt: &expires},
	}}
	subs := &fakeSubs{sub: &models.Subscription{
		UserID: "u-1", Plan: models.PlanPro,
		Status: models.SubscriptionStatusActive, CurrentPeriodEnd: &end,
	}}
	counter := &fakeReadingCounter{total: 7, thisMonth: 3}
	svc := NewUserService(users, subs, counter, "test-secret")
	svc.now = func() time.Time { return now }

	info, err := svc.AccessInfo(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, access.TierPro, info.Tier)
	assert.Equal(t, 10, info.ReadingLimit)
	assert.Equal(t, 3, info.ReadingsUsed, "pro quota counts the current month only")
}
