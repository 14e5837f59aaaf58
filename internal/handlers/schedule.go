package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
)

/*
handles routes:
- POST /schedule - actions: scheduleTask, scheduleAll, getDaySchedule
- GET /schedule?date=YYYY-MM-DD - the day's scheduled tasks
*/
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.runScheduleAction(w, r)
	case http.MethodGet:
		h.getDaySchedule(w, r)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) runScheduleAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	var input struct {
		Action string `json:"action"`
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	// Scheduling fans out to calendar providers, so give it more room than
	// a plain CRUD call.
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	switch input.Action {
	case "scheduleAll":
		scheduled, failed, err := h.Scheduler.ScheduleAllPending(ctx, userID)
		if err != nil {
			sendError(w, "Scheduling failed", http.StatusInternalServerError)
			return
		}
		sendJSON(w, map[string]any{
			"message":   fmt.Sprintf("Scheduled %d tasks successfully", scheduled),
			"scheduled": scheduled,
			"failed":    failed,
		})

	case "scheduleTask":
		taskID, err := uuid.Parse(input.TaskID)
		if err != nil {
			sendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
			return
		}
		success, err := h.Scheduler.ScheduleTask(ctx, userID, taskID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				sendError(w, "Task not found", http.StatusNotFound)
				return
			}
			sendError(w, "Scheduling failed", http.StatusInternalServerError)
			return
		}
		msg := "Task scheduled successfully"
		if !success {
			msg = "Could not find available time slot"
		}
		sendJSON(w, map[string]any{"success": success, "message": msg})

	case "getDaySchedule":
		h.getDaySchedule(w, r)

	default:
		sendError(w, "Invalid action", http.StatusBadRequest)
	}
}

func (h *Handler) getDaySchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			sendError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tasks, err := h.Scheduler.DaySchedule(ctx, userID, date)
	if err != nil {
		sendError(w, "Failed to load schedule", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]any{
		"schedule": tasks,
		"date":     date.Format("2006-01-02"),
	})
}

/*
GET /calendar/availability?date=YYYY-MM-DD - free slots within working hours
based on external calendar busy time.
*/
func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := userIDFromContext(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			sendError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	slots, err := h.Scheduler.Availability(ctx, userID, date)
	if err != nil {
		sendError(w, "Failed to compute availability", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]any{
		"date":            date.Format("2006-01-02"),
		"available_slots": slots,
	})
}
