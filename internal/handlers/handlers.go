package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chepyr/go-day-planner/internal/db"
	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/chepyr/go-day-planner/internal/notify"
	"github.com/chepyr/go-day-planner/internal/scheduler"
	"github.com/google/uuid"
)

type Handler struct {
	UserRepo    db.UserRepositoryInterface
	TaskRepo    db.TaskRepositoryInterface
	AccountRepo db.AccountRepositoryInterface
	Scheduler   *scheduler.Scheduler
	RateLimiter *RateLimiter
	WSHub       *WSHub
	Notifier    notify.Notifier
}

// TaskEventSink is wired as the scheduler's event callback: it fans each
// committed transition out to the owner's websocket clients and, for newly
// scheduled tasks, books a reminder with the notifier.
func (h *Handler) TaskEventSink(task *models.Task, eventType models.TaskEventType) {
	if h.WSHub != nil {
		h.WSHub.BroadcastTaskEvent(task.UserID, task, eventType)
	}
	if h.Notifier != nil && eventType == models.TaskEventScheduled && task.ScheduledStart != nil {
		_, _ = h.Notifier.ScheduleAt(context.Background(), task.UserID, *task.ScheduledStart, notify.Options{
			Title: "Task starting: " + task.Title,
			Tag:   task.ID.String(),
		})
	}
}

type RateLimiter struct {
	attempts map[string]int
	limit    int
	mutex    sync.Mutex
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts: make(map[string]int),
		limit:    limit,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	count, exists := rl.attempts[ip]
	if !exists {
		rl.attempts[ip] = 1
		return true
	}
	if count >= rl.limit {
		return false
	}
	rl.attempts[ip]++
	return true
}

func (rl *RateLimiter) cleanup() {
	for {
		time.Sleep(rl.window)
		rl.mutex.Lock()
		rl.attempts = make(map[string]int)
		rl.mutex.Unlock()
	}
}

func sendError(w http.ResponseWriter, msg string, code int) {
	http.Error(w, msg, code)
}

func sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func isJSONContentType(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// userIDFromContext reads the authenticated user id the middleware stored.
func userIDFromContext(r *http.Request) (uuid.UUID, bool) {
	raw, _ := r.Context().Value("user_id").(string)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
