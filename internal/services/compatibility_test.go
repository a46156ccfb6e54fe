package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/models"
	"palmlens-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfileRepo struct {
	profiles map[string]*models.Profile
	count    int
}

func (f *fakeProfileRepo) Create(ctx context.Context, profile *models.Profile) error {
	f.profiles[profile.ID] = profile
	f.count++
	return nil
}

func (f *fakeProfileRepo) GetOwned(ctx context.Context, id, userID string) (*models.Profile, error) {
	p, ok := f.profiles[id]
	if !ok || p.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfileRepo) ListByUserID(ctx context.Context, userID string) ([]*models.Profile, error) {
	var out []*models.Profile
	for _, p := range f.profiles {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfileRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	return f.count, nil
}

type fakeLatestReadings struct {
	byProfile map[string]*models.Reading
}

func (f *fakeLatestReadings) LatestCompletedByProfile(ctx context.Context, profileID string) (*models.Reading, error) {
	r, ok := f.byProfile[profileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

type fakeCompatGen struct {
	report     *models.CompatibilityReport
	err        error
	gotPrompt  string
	wantZodiac bool
}

func (f *fakeCompatGen) GenerateCompatibility(ctx context.Context, prompt string, wantZodiac bool) (*models.CompatibilityReport, error) {
	f.gotPrompt = prompt
	f.wantZodiac = wantZodiac
	return f.report, f.err
}

func dob(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func compatFixture(dobA, dobB *time.Time) (*CompatibilityService, *fakeCompatGen) {
	profiles := &fakeProfileRepo{profiles: map[string]*models.Profile{
		"p-a": {ID: "p-a", UserID: "u-1", Name: "Alice", DOB: dobA},
		"p-b": {ID: "p-b", UserID: "u-1", Name: "Bob", DOB: dobB},
		"p-x": {ID: "p-x", UserID: "u-2", Name: "Stranger"},
	}}
	analysis := &models.PalmAnalysis{}
	readings := &fakeLatestReadings{byProfile: map[string]*models.Reading{
		"p-a": {ID: "r-a", ProfileID: "p-a", Status: models.ReadingStatusCompleted, Analysis: analysis},
		"p-b": {ID: "r-b", ProfileID: "p-b", Status: models.ReadingStatusCompleted, Analysis: analysis},
	}}
	gen := &fakeCompatGen{report: &models.CompatibilityReport{
		OverallScore: 72,
		Summary:      "A balanced pairing.",
	}}
	return NewCompatibilityService(profiles, readings, gen), gen
}

func TestCompareSelfIsRejected(t *testing.T) {
	svc, gen := compatFixture(nil, nil)

	_, err := svc.Compare(context.Background(), "u-1", "p-a", "p-a")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Empty(t, gen.gotPrompt, "self-comparison must be rejected before calling the model")
}

func TestCompareForeignProfile(t *testing.T) {
	svc, _ := compatFixture(nil, nil)

	_, err := svc.Compare(context.Background(), "u-1", "p-a", "p-x")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

func TestCompareRequiresCompletedReadings(t *testing.T) {
	svc, gen := compatFixture(nil, nil)
	svc.readings = &fakeLatestReadings{byProfile: map[string]*models.Reading{
		"p-a": {ID: "r-a", ProfileID: "p-a", Status: models.ReadingStatusCompleted, Analysis: &models.PalmAnalysis{}},
	}}

	_, err := svc.Compare(context.Background(), "u-1", "p-a", "p-b")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Message, "Bob")
	assert.Empty(t, gen.gotPrompt)
}

func TestCompareWithoutDOBsSkipsZodiac(t *testing.T) {
	svc, gen := compatFixture(nil, nil)

	report, err := svc.Compare(context.Background(), "u-1", "p-a", "p-b")
	require.NoError(t, err)
	assert.False(t, gen.wantZodiac)
	assert.Nil(t, report.ZodiacCompatibility)
	assert.Equal(t, "Alice", report.ProfileA.Name)
	assert.Equal(t, "Bob", report.ProfileB.Name)
}

func TestCompareWithDOBsRequestsZodiac(t *testing.T) {
	svc, gen := compatFixture(dob("1995-07-30"), dob("1998-01-05"))
	gen.report.ZodiacCompatibility = &models.ZodiacCompatibility{Description: "Fire and earth."}

	report, err := svc.Compare(context.Background(), "u-1", "p-a", "p-b")
	require.NoError(t, err)
	assert.True(t, gen.wantZodiac)
	require.NotNil(t, report.ZodiacCompatibility)
	assert.Equal(t, "Leo", report.ZodiacCompatibility.SignA)
	assert.Equal(t, "Capricorn", report.ZodiacCompatibility.SignB)
	assert.True(t, strings.Contains(gen.gotPrompt, "Leo") && strings.Contains(gen.gotPrompt, "Capricorn"))
}

func TestComparePromptIsDeterministic(t *testing.T) {
	svc, gen := compatFixture(dob("1995-07-30"), dob("1998-01-05"))
	gen.report.ZodiacCompatibility = &models.ZodiacCompatibility{}

	_, err := svc.Compare(context.Background(), "u-1", "p-a", "p-b")
	require.NoError(t, err)
	first := gen.gotPrompt

	_, err = svc.Compare(context.Background(), "u-1", "p-a", "p-b")
	require.NoError(t, err)
	assert.Equal(t, first, gen.gotPrompt)
}
