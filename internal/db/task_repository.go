package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
)

const taskColumns = `id, user_id, title, description, priority, status, estimated_minutes,
 scheduled_start, scheduled_end, calendar_event_id, calendar_provider, source, created_at, updated_at`

// defines methods the scheduling core needs from the task store
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Task, error)
	ListByUserAndStatus(ctx context.Context, userID uuid.UUID, statuses ...models.TaskStatus) ([]*models.Task, error)
	ListScheduledInRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*models.Task, error)
	UpdateSchedule(ctx context.Context, id, userID uuid.UUID, start, end time.Time, status models.TaskStatus) error
	ClearSchedule(ctx context.Context, id, userID uuid.UUID, status models.TaskStatus) error
	UpdateStatus(ctx context.Context, id, userID uuid.UUID, status models.TaskStatus) error
	SetCalendarEvent(ctx context.Context, id, userID uuid.UUID, provider, eventID string) error
	ClearForReschedule(ctx context.Context, userID uuid.UUID) (int64, error)
	SwapSchedules(ctx context.Context, userID, taskA, taskB uuid.UUID) error
	AppendEvent(ctx context.Context, taskID uuid.UUID, eventType models.TaskEventType, reason string) error
	ListEvents(ctx context.Context, taskID uuid.UUID) ([]*models.TaskEvent, error)
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var start, end sql.NullTime
	var eventID, provider sql.NullString
	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description, &task.Priority,
		&task.Status, &task.EstimatedMinutes, &start, &end, &eventID, &provider,
		&task.Source, &task.CreatedAt, &task.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if start.Valid {
		task.ScheduledStart = &start.Time
	}
	if end.Valid {
		task.ScheduledEnd = &end.Time
	}
	task.CalendarEventID = eventID.String
	task.CalendarProvider = provider.String
	return task, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `INSERT INTO tasks (` + taskColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(
		ctx, query, task.ID, task.UserID, task.Title, task.Description, task.Priority,
		task.Status, task.EstimatedMinutes, nullTime(task.ScheduledStart), nullTime(task.ScheduledEnd),
		nullString(task.CalendarEventID), nullString(task.CalendarProvider),
		task.Source, task.CreatedAt, task.UpdatedAt)
	return err
}

// GetByID is scoped by owning user: a task that exists but belongs to
// someone else reads as not found.
func (r *TaskRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	return scanTask(r.db.QueryRowContext(ctx, query, id, userID))
}

func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `UPDATE tasks SET title = $1, description = $2, priority = $3, status = $4,
	 estimated_minutes = $5, updated_at = $6 WHERE id = $7 AND user_id = $8`

	res, err := r.db.ExecContext(ctx, query, task.Title, task.Description, task.Priority,
		task.Status, task.EstimatedMinutes, task.UpdatedAt, task.ID, task.UserID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *TaskRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.queryTasks(ctx, query, userID, limit)
}

// ListByUserAndStatus returns the user's tasks in any of the given statuses,
// oldest first.
func (r *TaskRepository) ListByUserAndStatus(ctx context.Context, userID uuid.UUID, statuses ...models.TaskStatus) ([]*models.Task, error) {
	if len(statuses) == 0 {
		return nil, fmt.Errorf("at least one status is required")
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+1)
	args = append(args, userID)
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, s)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 AND status IN (` +
		strings.Join(placeholders, ",") + `) ORDER BY created_at ASC`
	return r.queryTasks(ctx, query, args...)
}

// ListScheduledInRange returns SCHEDULED tasks starting within [start, end),
// ascending by scheduled start. The engine relies on this ordering.
func (r *TaskRepository) ListScheduledInRange(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
	 WHERE user_id = $1 AND status = $2 AND scheduled_start >= $3 AND scheduled_start < $4
	 ORDER BY scheduled_start ASC`
	return r.queryTasks(ctx, query, userID, models.TaskStatusScheduled, start, end)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateSchedule(ctx context.Context, id, userID uuid.UUID, start, end time.Time, status models.TaskStatus) error {
	query := `UPDATE tasks SET scheduled_start = $1, scheduled_end = $2, status = $3, updated_at = $4
	 WHERE id = $5 AND user_id = $6`
	res, err := r.db.ExecContext(ctx, query, start, end, status, time.Now().UTC(), id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ClearSchedule drops the task's interval and calendar linkage and moves it
// to the given status (POSTPONED or PENDING).
func (r *TaskRepository) ClearSchedule(ctx context.Context, id, userID uuid.UUID, status models.TaskStatus) error {
	query := `UPDATE tasks SET scheduled_start = NULL, scheduled_end = NULL,
	 calendar_event_id = NULL, calendar_provider = NULL, status = $1, updated_at = $2
	 WHERE id = $3 AND user_id = $4`
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status models.TaskStatus) error {
	query := `UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *TaskRepository) SetCalendarEvent(ctx context.Context, id, userID uuid.UUID, provider, eventID string) error {
	query := `UPDATE tasks SET calendar_event_id = $1, calendar_provider = $2, updated_at = $3
	 WHERE id = $4 AND user_id = $5`
	res, err := r.db.ExecContext(ctx, query, nullString(eventID), nullString(provider), time.Now().UTC(), id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ClearForReschedule resets every PENDING/SCHEDULED task to an unscheduled
// PENDING state so the batch scheduler can re-plan under new working hours.
func (r *TaskRepository) ClearForReschedule(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `UPDATE tasks SET status = $1, scheduled_start = NULL, scheduled_end = NULL, updated_at = $2
	 WHERE user_id = $3 AND status IN ($4, $5)`
	res, err := r.db.ExecContext(ctx, query, models.TaskStatusPending, time.Now().UTC(),
		userID, models.TaskStatusPending, models.TaskStatusScheduled)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SwapSchedules exchanges the scheduled intervals of two tasks in one
// transaction and appends a RESCHEDULED event to each. Both tasks must be in
// status SCHEDULED with full intervals; either both are updated or neither is.
func (r *TaskRepository) SwapSchedules(ctx context.Context, userID, taskA, taskB uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	a, err := scanTask(tx.QueryRowContext(ctx, query, taskA, userID))
	if err != nil {
		return err
	}
	b, err := scanTask(tx.QueryRowContext(ctx, query, taskB, userID))
	if err != nil {
		return err
	}
	if a.Status != models.TaskStatusScheduled || b.Status != models.TaskStatusScheduled ||
		!a.IsScheduled() || !b.IsScheduled() {
		return fmt.Errorf("both tasks must be scheduled to swap: %w", models.ErrInvalidState)
	}

	now := time.Now().UTC()
	update := `UPDATE tasks SET scheduled_start = $1, scheduled_end = $2, updated_at = $3
	 WHERE id = $4 AND user_id = $5`
	if _, err := tx.ExecContext(ctx, update, b.ScheduledStart, b.ScheduledEnd, now, a.ID, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, update, a.ScheduledStart, a.ScheduledEnd, now, b.ID, userID); err != nil {
		return err
	}

	event := `INSERT INTO task_events (id, task_id, type, reason, created_at) VALUES ($1, $2, $3, $4, $5)`
	reason := "Swapped schedule with another task"
	if _, err := tx.ExecContext(ctx, event, uuid.New(), a.ID, models.TaskEventRescheduled, reason, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, event, uuid.New(), b.ID, models.TaskEventRescheduled, reason, now); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *TaskRepository) AppendEvent(ctx context.Context, taskID uuid.UUID, eventType models.TaskEventType, reason string) error {
	query := `INSERT INTO task_events (id, task_id, type, reason, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, uuid.New(), taskID, eventType, reason, time.Now().UTC())
	return err
}

func (r *TaskRepository) ListEvents(ctx context.Context, taskID uuid.UUID) ([]*models.TaskEvent, error) {
	query := `SELECT id, task_id, type, reason, created_at FROM task_events
	 WHERE task_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.TaskEvent
	for rows.Next() {
		ev := &models.TaskEvent{}
		var reason sql.NullString
		if err := rows.Scan(&ev.ID, &ev.TaskID, &ev.Type, &reason, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Reason = reason.String
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
