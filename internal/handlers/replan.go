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

// replanRequest covers every re-planning route; unknown fields are ignored
// by the routes that do not use them.
type replanRequest struct {
	TaskID  string `json:"task_id"`
	TaskID2 string `json:"task_id_2"`
	Minutes int    `json:"minutes"`
	Reason  string `json:"reason"`
}

func (h *Handler) decodeReplan(w http.ResponseWriter, r *http.Request) (uuid.UUID, *replanRequest, bool) {
	if r.Method != http.MethodPost {
		sendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return uuid.Nil, nil, false
	}
	userID, ok := userIDFromContext(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, nil, false
	}

	var input replanRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return uuid.Nil, nil, false
	}
	return userID, &input, true
}

// replyReplanError maps core errors onto status codes: missing/foreign task
// reads as 404, a failed precondition as 409.
func replyReplanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		sendError(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidState):
		sendError(w, "Task is not in a valid state for this operation", http.StatusConflict)
	default:
		sendError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func parseTaskID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		sendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// POST /tasks/complete
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	userID, input, ok := h.decodeReplan(w, r)
	if !ok {
		return
	}
	taskID, ok := parseTaskID(w, input.TaskID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Scheduler.Complete(ctx, userID, taskID); err != nil {
		replyReplanError(w, err)
		return
	}
	sendJSON(w, map[string]any{"success": true})
}

// POST /tasks/postpone
func (h *Handler) HandlePostpone(w http.ResponseWriter, r *http.Request) {
	userID, input, ok := h.decodeReplan(w, r)
	if !ok {
		return
	}
	taskID, ok := parseTaskID(w, input.TaskID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.Scheduler.Postpone(ctx, userID, taskID, input.Reason); err != nil {
		replyReplanError(w, err)
		return
	}
	sendJSON(w, map[string]any{"success": true})
}

// POST /tasks/unpostpone
func (h *Handler) HandleUnpostpone(w http.ResponseWriter, r *http.Request) {
	userID, input, ok := h.decodeReplan(w, r)
	if !ok {
		return
	}
	taskID, ok := parseTaskID(w, input.TaskID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	scheduled, err := h.Scheduler.Unpostpone(ctx, userID, taskID)
	if err != nil {
		replyReplanError(w, err)
		return
	}
	sendJSON(w, map[string]any{"success": true, "scheduled": scheduled})
}

// POST /tasks/snooze
func (h *Handler) HandleSnooze(w http.ResponseWriter, r *http.Request) {
	userID, input, ok := h.decodeReplan(w, r)
	if !ok {
		return
	}
	taskID, ok := parseTaskID(w, input.TaskID)
	if !ok {
		return
	}
	minutes := input.Minutes
	if minutes <= 0 {
		minutes = 5
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Scheduler.Snooze(ctx, userID, taskID, minutes); err != nil {
		replyReplanError(w, err)
		return
	}
	sendJSON(w, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Task snoozed for %d minutes", minutes),
	})
}

// POST /tasks/extend
func (h *Handler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	userID, input, ok := h.decodeReplan(w, r)
	if !ok {
		return
	}
	taskID, ok := parseTaskID(w, input.TaskID)
	if !ok {
		return
	}
	minutes := input.Minutes
	if minutes <= 0 {
		minutes = 15
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Scheduler.Extend(ctx, userID, taskID, minutes); err != nil {
		replyReplanError(w, err)
		return
	}
	sendJSON(w, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Task extended by %d minutes", minutes),
	})
}

// POST /tasks/swap
func (h *Handler) HandleSwap(w http.ResponseWriter, r *http.Request) {
	userID, input, ok := h.decodeReplan(w, r)
	if !ok {
		return
	}
	taskA, ok := parseTaskID(w, input.TaskID)
	if !ok {
		return
	}
	taskB, err := uuid.Parse(input.TaskID2)
	if err != nil {
		sendError(w, "task_id_2 must be a valid uuid", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Scheduler.Swap(ctx, userID, taskA, taskB); err != nil {
		replyReplanError(w, err)
		return
	}
	sendJSON(w, map[string]any{"success": true, "message": "Tasks swapped successfully"})
}
