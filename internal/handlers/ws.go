package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSHub tracks live websocket connections per user so schedule changes can
// be pushed to every open client of the task owner.
type WSHub struct {
	connections map[uuid.UUID]map[*websocket.Conn]bool
	mutex       sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[uuid.UUID]map[*websocket.Conn]bool)}
}

// BroadcastTaskEvent sends a schedule change to all of the user's connections.
func (h *WSHub) BroadcastTaskEvent(userID uuid.UUID, task *models.Task, eventType models.TaskEventType) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, exists := h.connections[userID]
	if !exists {
		return
	}

	payload := map[string]any{
		"event":    string(eventType),
		"task_id":  task.ID,
		"title":    task.Title,
		"status":   task.Status,
		"priority": task.Priority,
	}
	if task.ScheduledStart != nil {
		payload["scheduled_start"] = task.ScheduledStart.Format(time.RFC3339)
	}
	if task.ScheduledEnd != nil {
		payload["scheduled_end"] = task.ScheduledEnd.Format(time.RFC3339)
	}
	message, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal task event: %v", err)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Failed to send WebSocket message: %v", err)
			delete(conns, conn)
			conn.Close()
		}
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := r.RemoteAddr
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP) {
		sendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}

	// The auth middleware already ran, so the connection belongs to the
	// authenticated user rather than a query parameter.
	userID, ok := userIDFromContext(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Adjust for production (e.g., check specific origins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		sendError(w, "WebSocket upgrade failed", http.StatusInternalServerError)
		return
	}

	h.WSHub.mutex.Lock()
	if h.WSHub.connections[userID] == nil {
		h.WSHub.connections[userID] = make(map[*websocket.Conn]bool)
	}
	h.WSHub.connections[userID][conn] = true
	h.WSHub.mutex.Unlock()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			h.WSHub.mutex.Lock()
			delete(h.WSHub.connections[userID], conn)
			h.WSHub.mutex.Unlock()
			conn.Close()
			return
		}
		// Clients only listen; incoming messages are ignored.
	}
}
