package services

import (
	"testing"

	"palmlens-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNotifyHubOnlineTracking(t *testing.T) {
	hub := NewNotifyHub()
	assert.False(t, hub.IsOnline(testUserID))

	// Pushing to an offline user is a no-op, not an error.
	hub.NotifyReading(testUserID, &models.Reading{
		ID:     "r-1",
		UserID: testUserID,
		Status: models.ReadingStatusCompleted,
	})

	hub.Register(testUserID, nil)
	assert.True(t, hub.IsOnline(testUserID))
}
