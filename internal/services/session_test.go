package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/session"
	"palmlens-backend/internal/vision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionStore struct {
	records map[string]*session.Record
	next    int
}

func (f *fakeSessionStore) Create(ctx context.Context, photoKey, dob string) (string, error) {
	f.next++
	token := "tok"
	f.records[token] = &session.Record{PhotoKey: photoKey, DOB: dob}
	return token, nil
}

func (f *fakeSessionStore) Get(ctx context.Context, token string) (*session.Record, error) {
	rec, ok := f.records[token]
	if !ok {
		return nil, session.ErrNotFound
	}
	return rec, nil
}

func (f *fakeSessionStore) Confirm(ctx context.Context, token string) (bool, error) {
	rec, ok := f.records[token]
	if !ok {
		return false, nil
	}
	rec.Confirmed = true
	return true, nil
}

type fakeUploader struct {
	uploads map[string]string
}

func (f *fakeUploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if f.uploads == nil {
		f.uploads = make(map[string]string)
	}
	f.uploads[key] = contentType
	return key, nil
}

func (f *fakeUploader) ImageURL(ctx context.Context, key string) string {
	return "https://img.test/" + key
}

type fakePalmValidator struct {
	result vision.Validation
	calls  int
}

func (f *fakePalmValidator) ValidatePalm(ctx context.Context, imageURL string) vision.Validation {
	f.calls++
	return f.result
}

func sessionFixture(result vision.Validation) (*SessionService, *fakeSessionStore, *fakePalmValidator) {
	store := &fakeSessionStore{records: make(map[string]*session.Record)}
	validator := &fakePalmValidator{result: result}
	svc := NewSessionService(store, &fakeUploader{}, validator)
	return svc, store, validator
}

func TestSessionUploadRejectsNonImage(t *testing.T) {
	svc, _, _ := sessionFixture(vision.Validation{})

	_, err := svc.Upload(context.Background(), strings.NewReader("data"), 4, "application/pdf", "")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
}

func TestSessionUploadRejectsOversized(t *testing.T) {
	svc, _, _ := sessionFixture(vision.Validation{})

	_, err := svc.Upload(context.Background(), strings.NewReader("data"), MaxUploadSize+1, "image/jpeg", "")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
}

func TestSessionUploadStoresPhotoAndDOB(t *testing.T) {
	svc, store, _ := sessionFixture(vision.Validation{})

	token, err := svc.Upload(context.Background(), strings.NewReader("data"), 4, "image/jpeg", "1990-02-10")
	require.NoError(t, err)

	rec := store.records[token]
	require.NotNil(t, rec)
	assert.True(t, strings.HasPrefix(rec.PhotoKey, "temp/"))
	assert.Equal(t, "1990-02-10", rec.DOB)
	assert.False(t, rec.Confirmed)
}

func TestSessionConfirmValidPalm(t *testing.T) {
	svc, store, validator := sessionFixture(vision.Validation{Valid: true})
	store.records["tok"] = &session.Record{PhotoKey: "temp/x/1.jpg"}

	result, err := svc.Confirm(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 1, validator.calls)
	assert.True(t, store.records["tok"].Confirmed)
}

func TestSessionConfirmRejectedPhotoStaysUnconfirmed(t *testing.T) {
	svc, store, _ := sessionFixture(vision.Validation{Valid: false, Reason: "No palm visible"})
	store.records["tok"] = &session.Record{PhotoKey: "temp/x/1.jpg"}

	result, err := svc.Confirm(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "No palm visible", result.Reason)
	assert.False(t, store.records["tok"].Confirmed)
}

func TestSessionConfirmAlreadyConfirmedSkipsValidation(t *testing.T) {
	svc, store, validator := sessionFixture(vision.Validation{Valid: false})
	store.records["tok"] = &session.Record{PhotoKey: "temp/x/1.jpg", Confirmed: true}

	result, err := svc.Confirm(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 0, validator.calls)
}

func TestSessionGetExpired(t *testing.T) {
	svc, _, _ := sessionFixture(vision.Validation{})

	_, err := svc.Get(context.Background(), "gone")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}
