package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusScheduled TaskStatus = "SCHEDULED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusPostponed TaskStatus = "POSTPONED"
	TaskStatusCanceled  TaskStatus = "CANCELED"
	TaskStatusSkipped   TaskStatus = "SKIPPED"
)

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
	TaskPriorityUrgent TaskPriority = "URGENT"
)

// Weight orders priorities for scheduling: URGENT highest, LOW lowest.
// Unknown values fall back to MEDIUM.
func (p TaskPriority) Weight() int {
	switch p {
	case TaskPriorityUrgent:
		return 4
	case TaskPriorityHigh:
		return 3
	case TaskPriorityMedium:
		return 2
	case TaskPriorityLow:
		return 1
	default:
		return 2
	}
}

type TaskSource string

const (
	TaskSourceManual TaskSource = "MANUAL"
	TaskSourceEmail  TaskSource = "EMAIL"
	TaskSourceAPI    TaskSource = "API"
)

type Task struct {
	ID               uuid.UUID    `json:"id"`
	UserID           uuid.UUID    `json:"user_id"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	Priority         TaskPriority `json:"priority"`
	Status           TaskStatus   `json:"status"`
	EstimatedMinutes int          `json:"estimated_minutes"`
	ScheduledStart   *time.Time   `json:"scheduled_start,omitempty"`
	ScheduledEnd     *time.Time   `json:"scheduled_end,omitempty"`
	// External calendar linkage. Kept as two dedicated fields so the
	// event id is never overloaded with anything else.
	CalendarEventID  string     `json:"calendar_event_id,omitempty"`
	CalendarProvider string     `json:"calendar_provider,omitempty"`
	Source           TaskSource `json:"source"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsScheduled reports whether the task carries a full [start, end) interval.
// Both bounds are set together or not at all.
func (t *Task) IsScheduled() bool {
	return t.ScheduledStart != nil && t.ScheduledEnd != nil
}

type TaskEventType string

const (
	TaskEventCreated     TaskEventType = "CREATED"
	TaskEventScheduled   TaskEventType = "SCHEDULED"
	TaskEventRescheduled TaskEventType = "RESCHEDULED"
	TaskEventPostponed   TaskEventType = "POSTPONED"
	TaskEventCompleted   TaskEventType = "COMPLETED"
)

// TaskEvent is an append-only audit record of a task state transition.
// Events are never updated or deleted and are not read by scheduling logic.
type TaskEvent struct {
	ID        uuid.UUID     `json:"id"`
	TaskID    uuid.UUID     `json:"task_id"`
	Type      TaskEventType `json:"type"`
	Reason    string        `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
