package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
)

/*
handles routes:
- GET /tasks - list the caller's recent tasks
- POST /tasks - create a new task
*/
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTasks(w, r)

	case http.MethodPost:
		h.createTask(w, r)

	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	tasks, err := h.TaskRepo.ListByUser(ctx, userID, 50)
	if err != nil {
		sendError(w, "Failed to list tasks", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]any{"tasks": tasks})
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	var input struct {
		Title            string `json:"title"`
		Description      string `json:"description"`
		Priority         string `json:"priority"`
		EstimatedMinutes *int   `json:"estimated_minutes"`
		Source           string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		sendError(w, "title is required", http.StatusBadRequest)
		return
	}
	if len(title) > 200 {
		sendError(w, "title too long (max 200 chars)", http.StatusBadRequest)
		return
	}

	priority := normalizePriority(input.Priority)
	if priority == "" {
		sendError(w, "Invalid priority value", http.StatusBadRequest)
		return
	}
	source := normalizeSource(input.Source)
	if source == "" {
		sendError(w, "Invalid source value", http.StatusBadRequest)
		return
	}

	minutes := 30
	if input.EstimatedMinutes != nil {
		minutes = *input.EstimatedMinutes
	}
	if minutes < 5 || minutes > 8*60 {
		sendError(w, "estimated_minutes must be between 5 and 480", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	task := &models.Task{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            title,
		Description:      strings.TrimSpace(input.Description),
		Priority:         priority,
		Status:           models.TaskStatusPending,
		EstimatedMinutes: minutes,
		Source:           source,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.TaskRepo.Create(ctx, task); err != nil {
		sendError(w, "Failed to create task", http.StatusInternalServerError)
		return
	}
	if err := h.TaskRepo.AppendEvent(ctx, task.ID, models.TaskEventCreated, ""); err != nil {
		log.Printf("append CREATED event for task %s: %v", task.ID, err)
	}

	w.Header().Set("Location", "/tasks/"+task.ID.String())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"task": task})
}

/*
routes:
- GET /tasks/{id},
- PUT/PATCH /tasks/{id},
- DELETE /tasks/{id}
*/
func (h *Handler) HandleTaskByID(w http.ResponseWriter, r *http.Request) {
	taskIDstr := r.URL.Path[len("/tasks/"):]
	if taskIDstr == "" {
		sendError(w, "task_id is required", http.StatusBadRequest)
		return
	}
	taskID, err := uuid.Parse(taskIDstr)
	if err != nil {
		sendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTaskByID(w, r, taskID)
	case http.MethodPut, http.MethodPatch:
		h.updateTaskByID(w, r, taskID)
	case http.MethodDelete:
		h.deleteTaskByID(w, r, taskID)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.TaskRepo.GetByID(ctx, taskID, userID)
	if err != nil {
		sendError(w, "Task not found", http.StatusNotFound)
		return
	}

	events, err := h.TaskRepo.ListEvents(ctx, taskID)
	if err != nil {
		sendError(w, "Failed to load task events", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]any{"task": task, "events": events})
}

func (h *Handler) updateTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.TaskRepo.GetByID(ctx, taskID, userID)
	if err != nil {
		sendError(w, "Task not found", http.StatusNotFound)
		return
	}

	var input struct {
		Title            *string `json:"title"`
		Description      *string `json:"description"`
		Priority         *string `json:"priority"`
		EstimatedMinutes *int    `json:"estimated_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			sendError(w, "title cannot be empty", http.StatusBadRequest)
			return
		}
		if len(title) > 200 {
			sendError(w, "title too long (max 200 chars)", http.StatusBadRequest)
			return
		}
		task.Title = title
	}
	if input.Description != nil {
		desc := strings.TrimSpace(*input.Description)
		if len(desc) > 1000 {
			sendError(w, "description too long (max 1000 chars)", http.StatusBadRequest)
			return
		}
		task.Description = desc
	}
	if input.Priority != nil {
		priority := normalizePriority(*input.Priority)
		if priority == "" {
			sendError(w, "Invalid priority value", http.StatusBadRequest)
			return
		}
		task.Priority = priority
	}
	if input.EstimatedMinutes != nil {
		if *input.EstimatedMinutes < 5 || *input.EstimatedMinutes > 8*60 {
			sendError(w, "estimated_minutes must be between 5 and 480", http.StatusBadRequest)
			return
		}
		task.EstimatedMinutes = *input.EstimatedMinutes
	}
	task.UpdatedAt = time.Now().UTC()

	if err := h.TaskRepo.Update(ctx, task); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			sendError(w, "Task not found", http.StatusNotFound)
			return
		}
		sendError(w, "Failed to update task", http.StatusInternalServerError)
		return
	}
	sendJSON(w, map[string]any{"task": task})
}

func (h *Handler) deleteTaskByID(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := userIDFromContext(r)
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	task, err := h.TaskRepo.GetByID(ctx, taskID, userID)
	if err != nil {
		sendError(w, "Task not found", http.StatusNotFound)
		return
	}

	// best-effort removal of the linked external event before the row goes
	if task.CalendarEventID != "" && h.Scheduler != nil && h.Scheduler.Calendar != nil {
		if err := h.Scheduler.Calendar.DeleteEventForTask(ctx, userID, task.CalendarProvider, task.CalendarEventID); err != nil {
			log.Printf("delete calendar event %s for task %s: %v", task.CalendarEventID, task.ID, err)
		}
	}

	if err := h.TaskRepo.Delete(ctx, taskID, userID); err != nil {
		sendError(w, "Failed to delete task", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// convert various user inputs to standard priority values
func normalizePriority(s string) models.TaskPriority {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "MEDIUM":
		return models.TaskPriorityMedium
	case "LOW":
		return models.TaskPriorityLow
	case "HIGH":
		return models.TaskPriorityHigh
	case "URGENT":
		return models.TaskPriorityUrgent
	default:
		return ""
	}
}

func normalizeSource(s string) models.TaskSource {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "MANUAL":
		return models.TaskSourceManual
	case "EMAIL":
		return models.TaskSourceEmail
	case "API":
		return models.TaskSourceAPI
	default:
		return ""
	}
}
