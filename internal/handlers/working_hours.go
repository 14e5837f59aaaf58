package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
)

/*
POST /user/working-hours - update the caller's working window. With
"reschedule": true all pending and scheduled tasks are cleared back to
pending and re-planned against the new window.
*/
func (h *Handler) HandleWorkingHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return
	}
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
		StartMinutes *int `json:"start_minutes"`
		EndMinutes   *int `json:"end_minutes"`
		Reschedule   bool `json:"reschedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.StartMinutes == nil || input.EndMinutes == nil {
		sendError(w, "start_minutes and end_minutes are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	scheduled, failed, err := h.Scheduler.UpdateWorkingHours(ctx, userID, *input.StartMinutes, *input.EndMinutes, input.Reschedule)
	if err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			sendError(w, "end_minutes must be greater than start_minutes and within the day", http.StatusBadRequest)
			return
		}
		sendError(w, "Failed to update working hours", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"success": true}
	if input.Reschedule {
		resp["rescheduled"] = scheduled
		resp["failed"] = failed
	}
	sendJSON(w, resp)
}
