package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	dbx, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ddl := `
CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  timezone TEXT NOT NULL,
  workday_start_min INTEGER NOT NULL,
  workday_end_min INTEGER NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE tasks (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  priority TEXT NOT NULL,
  status TEXT NOT NULL,
  estimated_minutes INTEGER NOT NULL,
  scheduled_start TIMESTAMP,
  scheduled_end TIMESTAMP,
  calendar_event_id TEXT,
  calendar_provider TEXT,
  source TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE task_events (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL,
  type TEXT NOT NULL,
  reason TEXT,
  created_at TIMESTAMP NOT NULL
);
CREATE TABLE calendar_accounts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  access_token TEXT NOT NULL,
  refresh_token TEXT,
  expires_at TIMESTAMP NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE INDEX idx_tasks_user_status ON tasks(user_id, status);
`
	if _, err := dbx.Exec(ddl); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { dbx.Close() })
	return dbx
}

func newTask(userID uuid.UUID, priority models.TaskPriority, createdAt time.Time) *models.Task {
	return &models.Task{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            "Write weekly report",
		Description:      "numbers for the team sync",
		Priority:         priority,
		Status:           models.TaskStatusPending,
		EstimatedMinutes: 30,
		Source:           models.TaskSourceManual,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func TestTaskRepositoryCreateGetUpdateDelete(t *testing.T) {
	dbx := setupDB(t)
	repo := NewTaskRepository(dbx)
	ctx := context.Background()

	userID := uuid.New()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	task := newTask(userID, models.TaskPriorityHigh, now)

	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, task.ID, userID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != task.Title || got.Priority != models.TaskPriorityHigh || got.Status != models.TaskStatusPending {
		t.Errorf("GetByID mismatch: %#v", got)
	}
	if got.ScheduledStart != nil || got.CalendarEventID != "" {
		t.Errorf("new task should have no schedule or calendar linkage: %#v", got)
	}

	// ownership scoping
	if _, err := repo.GetByID(ctx, task.ID, uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("foreign user GetByID err = %v, want ErrNotFound", err)
	}

	got.Title = "Updated title"
	got.Priority = models.TaskPriorityUrgent
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	after, _ := repo.GetByID(ctx, task.ID, userID)
	if after.Title != "Updated title" || after.Priority != models.TaskPriorityUrgent {
		t.Errorf("update not persisted: %#v", after)
	}

	if err := repo.Delete(ctx, task.ID, userID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, task.ID, userID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetByID after delete err = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, task.ID, userID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestTaskRepositoryListByUserAndStatus(t *testing.T) {
	dbx := setupDB(t)
	repo := NewTaskRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	older := newTask(userID, models.TaskPriorityLow, base)
	newer := newTask(userID, models.TaskPriorityHigh, base.Add(time.Minute))
	done := newTask(userID, models.TaskPriorityHigh, base.Add(2*time.Minute))
	done.Status = models.TaskStatusCompleted
	for _, task := range []*models.Task{newer, older, done} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	pending, err := repo.ListByUserAndStatus(ctx, userID, models.TaskStatusPending)
	if err != nil {
		t.Fatalf("ListByUserAndStatus: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending tasks, want 2", len(pending))
	}
	if pending[0].ID != older.ID {
		t.Errorf("expected oldest task first, got %s", pending[0].ID)
	}

	both, err := repo.ListByUserAndStatus(ctx, userID, models.TaskStatusPending, models.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("ListByUserAndStatus two statuses: %v", err)
	}
	if len(both) != 3 {
		t.Errorf("got %d tasks across two statuses, want 3", len(both))
	}

	if _, err := repo.ListByUserAndStatus(ctx, userID); err == nil {
		t.Error("expected error when no status is given")
	}
}

func TestTaskRepositoryScheduleRoundTrip(t *testing.T) {
	dbx := setupDB(t)
	repo := NewTaskRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	task := newTask(userID, models.TaskPriorityHigh, base)
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if err := repo.UpdateSchedule(ctx, task.ID, userID, start, start.Add(time.Hour), models.TaskStatusScheduled); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}
	if err := repo.SetCalendarEvent(ctx, task.ID, userID, "google", "evt-1"); err != nil {
		t.Fatalf("SetCalendarEvent: %v", err)
	}

	got, _ := repo.GetByID(ctx, task.ID, userID)
	if !got.IsScheduled() || !got.ScheduledStart.Equal(start) {
		t.Fatalf("schedule not persisted: %#v", got)
	}
	if got.CalendarProvider != "google" || got.CalendarEventID != "evt-1" {
		t.Errorf("calendar linkage = (%q, %q)", got.CalendarProvider, got.CalendarEventID)
	}

	if err := repo.ClearSchedule(ctx, task.ID, userID, models.TaskStatusPostponed); err != nil {
		t.Fatalf("ClearSchedule: %v", err)
	}
	cleared, _ := repo.GetByID(ctx, task.ID, userID)
	if cleared.Status != models.TaskStatusPostponed || cleared.ScheduledStart != nil || cleared.CalendarEventID != "" {
		t.Errorf("ClearSchedule left residue: %#v", cleared)
	}
}

func TestTaskRepositoryListScheduledInRange(t *testing.T) {
	dbx := setupDB(t)
	repo := NewTaskRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mk := func(startHour int) *models.Task {
		task := newTask(userID, models.TaskPriorityHigh, base)
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("Create: %v", err)
		}
		start := base.Add(time.Duration(startHour) * time.Hour)
		if err := repo.UpdateSchedule(ctx, task.ID, userID, start, start.Add(time.Hour), models.TaskStatusScheduled); err != nil {
			t.Fatalf("UpdateSchedule: %v", err)
		}
		return task
	}
	late := mk(15)
	early := mk(9)
	mk(30) // next day, outside the range

	got, err := repo.ListScheduledInRange(ctx, userID, base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListScheduledInRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tasks, want 2 in range", len(got))
	}
	if got[0].ID != early.ID || got[1].ID != late.ID {
		t.Errorf("order = [%s, %s], want ascending by start", got[0].ID, got[1].ID)
	}
}

func TestTaskRepositoryClearForReschedule(t *testing.T) {
	dbx := setupDB(t)
	repo := NewTaskRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	pending := newTask(userID, models.TaskPriorityLow, base)
	scheduled := newTask(userID, models.TaskPriorityHigh, base)
	completed := newTask(userID, models.TaskPriorityHigh, base)
	completed.Status = models.TaskStatusCompleted
	for _, task := range []*models.Task{pending, scheduled, completed} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	start := base.Add(time.Hour)
	if err := repo.UpdateSchedule(ctx, scheduled.ID, userID, start, start.Add(time.Hour), models.TaskStatusScheduled); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}

	n, err := repo.ClearForReschedule(ctx, userID)
	if err != nil {
		t.Fatalf("ClearForReschedule: %v", err)
	}
	if n != 2 {
		t.Errorf("cleared %d rows, want 2 (pending + scheduled)", n)
	}

	got, _ := repo.GetByID(ctx, scheduled.ID, userID)
	if got.Status != models.TaskStatusPending || got.ScheduledStart != nil {
		t.Errorf("scheduled task not reset: %#v", got)
	}
	untouched, _ := repo.GetByID(ctx, completed.ID, userID)
	if untouched.Status != models.TaskStatusCompleted {
		t.Errorf("completed task status = %s, want untouched", untouched.Status)
	}
}

func TestTaskRepositorySwapSchedules(t *testing.T) {
	dbx := setupDB(t)
	repo := NewTaskRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	a := newTask(userID, models.TaskPriorityHigh, base)
	b := newTask(userID, models.TaskPriorityLow, base)
	for _, task := range []*models.Task{a, b} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	aStart, bStart := base.Add(9*time.Hour), base.Add(14*time.Hour)
	if err := repo.UpdateSchedule(ctx, a.ID, userID, aStart, aStart.Add(time.Hour), models.TaskStatusScheduled); err != nil {
		t.Fatalf("schedule a: %v", err)
	}
	if err := repo.UpdateSchedule(ctx, b.ID, userID, bStart, bStart.Add(30*time.Minute), models.TaskStatusScheduled); err != nil {
		t.Fatalf("schedule b: %v", err)
	}

	if err := repo.SwapSchedules(ctx, userID, a.ID, b.ID); err != nil {
		t.Fatalf("SwapSchedules: %v", err)
	}

	gotA, _ := repo.GetByID(ctx, a.ID, userID)
	gotB, _ := repo.GetByID(ctx, b.ID, userID)
	if !gotA.ScheduledStart.Equal(bStart) || !gotB.ScheduledStart.Equal(aStart) {
		t.Errorf("swap result: a=%v b=%v", gotA.ScheduledStart, gotB.ScheduledStart)
	}

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		events, err := repo.ListEvents(ctx, id)
		if err != nil {
			t.Fatalf("ListEvents: %v", err)
		}
		if len(events) != 1 || events[0].Type != models.TaskEventRescheduled {
			t.Errorf("task %s events = %v, want one RESCHEDULED", id, events)
		}
	}
}

func TestTaskRepositorySwapRejectsUnscheduled(t *testing.T) {
	dbx := setupDB(t)
	repo := NewTaskRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	a := newTask(userID, models.TaskPriorityHigh, base)
	b := newTask(userID, models.TaskPriorityLow, base)
	for _, task := range []*models.Task{a, b} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	aStart := base.Add(9 * time.Hour)
	if err := repo.UpdateSchedule(ctx, a.ID, userID, aStart, aStart.Add(time.Hour), models.TaskStatusScheduled); err != nil {
		t.Fatalf("schedule a: %v", err)
	}

	if err := repo.SwapSchedules(ctx, userID, a.ID, b.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	// the transaction must have rolled back
	gotA, _ := repo.GetByID(ctx, a.ID, userID)
	if !gotA.ScheduledStart.Equal(aStart) {
		t.Errorf("task a start = %v, want unchanged %v", gotA.ScheduledStart, aStart)
	}
	events, _ := repo.ListEvents(ctx, a.ID)
	if len(events) != 0 {
		t.Errorf("events after failed swap = %v, want none", events)
	}
}

func TestTaskRepositorySwapRejectsCompleted(t *testing.T) {
	dbx := setupDB(t)
	repo := NewTaskRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	a := newTask(userID, models.TaskPriorityHigh, base)
	b := newTask(userID, models.TaskPriorityLow, base)
	for _, task := range []*models.Task{a, b} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	aStart, bStart := base.Add(9*time.Hour), base.Add(14*time.Hour)
	if err := repo.UpdateSchedule(ctx, a.ID, userID, aStart, aStart.Add(time.Hour), models.TaskStatusScheduled); err != nil {
		t.Fatalf("schedule a: %v", err)
	}
	if err := repo.UpdateSchedule(ctx, b.ID, userID, bStart, bStart.Add(time.Hour), models.TaskStatusScheduled); err != nil {
		t.Fatalf("schedule b: %v", err)
	}
	// completing keeps the interval on the row; status alone must block the swap
	if err := repo.UpdateStatus(ctx, a.ID, userID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if err := repo.SwapSchedules(ctx, userID, a.ID, b.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	gotA, _ := repo.GetByID(ctx, a.ID, userID)
	gotB, _ := repo.GetByID(ctx, b.ID, userID)
	if gotA.Status != models.TaskStatusCompleted || !gotA.ScheduledStart.Equal(aStart) {
		t.Errorf("completed task mutated: status=%s start=%v", gotA.Status, gotA.ScheduledStart)
	}
	if !gotB.ScheduledStart.Equal(bStart) {
		t.Errorf("task b start = %v, want unchanged %v", gotB.ScheduledStart, bStart)
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		if events, _ := repo.ListEvents(ctx, id); len(events) != 0 {
			t.Errorf("events after rejected swap = %v, want none", events)
		}
	}
}

func TestTaskRepositoryEvents(t *testing.T) {
	dbx := setupDB(t)
	repo := NewTaskRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()

	task := newTask(userID, models.TaskPriorityHigh, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.AppendEvent(ctx, task.ID, models.TaskEventCreated, ""); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := repo.AppendEvent(ctx, task.ID, models.TaskEventScheduled, "Auto-scheduled for Mar 2, 2026 09:00"); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	events, err := repo.ListEvents(ctx, task.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != models.TaskEventCreated || events[1].Type != models.TaskEventScheduled {
		t.Errorf("event order = [%s, %s]", events[0].Type, events[1].Type)
	}
}
