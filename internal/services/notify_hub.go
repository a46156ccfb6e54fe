package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"palmlens-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	ReadingID string      `json:"reading_id,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// NotifyHub manages WebSocket connections and pushes reading updates to
// connected clients. Clients that are offline simply miss the push and see
// the final state on their next poll.
type NotifyHub struct {
	mu          sync.RWMutex
	connections map[string]*websocket.Conn
}

// NewNotifyHub creates a new notification hub
func NewNotifyHub() *NotifyHub {
	return &NotifyHub{
		connections: make(map[string]*websocket.Conn),
	}
}

// Register registers a new WebSocket connection for a user
func (h *NotifyHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existingConn, exists := h.connections[userID]; exists {
		existingConn.Close()
	}

	h.connections[userID] = conn

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a WebSocket connection for a user
func (h *NotifyHub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[userID]; exists {
		conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// IsOnline checks if a user is connected
func (h *NotifyHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// SendToUser sends a message to a specific user
func (h *NotifyHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	conn, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.Unregister(userID)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// NotifyReading pushes a reading's final state to its owner, if connected.
func (h *NotifyHub) NotifyReading(userID string, reading *models.Reading) {
	if !h.IsOnline(userID) {
		log.Debug().
			Str("user_id", userID).
			Str("reading_id", reading.ID).
			Msg("User not connected, skipping reading push")
		return
	}

	msgType := "reading_completed"
	if reading.Status == models.ReadingStatusFailed {
		msgType = "reading_failed"
	}

	message := WSMessage{
		Type:      msgType,
		ReadingID: reading.ID,
		Data:      reading,
	}

	if err := h.SendToUser(userID, message); err != nil {
		log.Debug().
			Str("user_id", userID).
			Str("reading_id", reading.ID).
			Err(err).
			Msg("Failed to push reading update")
	}
}
