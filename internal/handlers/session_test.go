package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionGetWithoutCookie(t *testing.T) {
	h := NewSessionHandler(nil, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "No active session", body.Error)
}

func TestSessionConfirmWithoutCookie(t *testing.T) {
	h := NewSessionHandler(nil, time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/confirm", nil)
	rec := httptest.NewRecorder()
	h.Confirm(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "No active session", body.Error)
}

func TestSessionEmptyCookieTreatedAsMissing(t *testing.T) {
	h := NewSessionHandler(nil, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.AddCookie(&http.Cookie{Name: "palm_session", Value: ""})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
