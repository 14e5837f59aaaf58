package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
)

// Complete marks a task done. Terminal: completed tasks are never
// rescheduled.
func (s *Scheduler) Complete(ctx context.Context, userID, taskID uuid.UUID) error {
	task, err := s.Tasks.GetByID(ctx, taskID, userID)
	if err != nil {
		return err
	}
	if err := s.Tasks.UpdateStatus(ctx, taskID, userID, models.TaskStatusCompleted); err != nil {
		return err
	}
	if err := s.Tasks.AppendEvent(ctx, taskID, models.TaskEventCompleted, "Marked as completed by user"); err != nil {
		return err
	}
	task.Status = models.TaskStatusCompleted
	s.emit(task, models.TaskEventCompleted)
	return nil
}

// Postpone clears the task's interval and moves it to POSTPONED. Any linked
// external calendar event is deleted best-effort first.
func (s *Scheduler) Postpone(ctx context.Context, userID, taskID uuid.UUID, reason string) error {
	task, err := s.Tasks.GetByID(ctx, taskID, userID)
	if err != nil {
		return err
	}

	if task.CalendarEventID != "" {
		if err := s.Calendar.DeleteEventForTask(ctx, userID, task.CalendarProvider, task.CalendarEventID); err != nil {
			log.Printf("delete calendar event %s for task %s: %v", task.CalendarEventID, task.ID, err)
		}
	}

	if err := s.Tasks.ClearSchedule(ctx, taskID, userID, models.TaskStatusPostponed); err != nil {
		return err
	}
	if reason == "" {
		reason = "Postponed by user"
	}
	if err := s.Tasks.AppendEvent(ctx, taskID, models.TaskEventPostponed, reason); err != nil {
		return err
	}

	task.Status = models.TaskStatusPostponed
	task.ScheduledStart, task.ScheduledEnd = nil, nil
	task.CalendarEventID, task.CalendarProvider = "", ""
	s.emit(task, models.TaskEventPostponed)
	return nil
}

// Unpostpone returns a POSTPONED task to PENDING and immediately tries to
// schedule it again. The boolean reports whether a new slot was found.
func (s *Scheduler) Unpostpone(ctx context.Context, userID, taskID uuid.UUID) (bool, error) {
	task, err := s.Tasks.GetByID(ctx, taskID, userID)
	if err != nil {
		return false, err
	}
	if task.Status != models.TaskStatusPostponed {
		return false, fmt.Errorf("task %s is not postponed: %w", taskID, models.ErrInvalidState)
	}

	if err := s.Tasks.ClearSchedule(ctx, taskID, userID, models.TaskStatusPending); err != nil {
		return false, err
	}
	if err := s.Tasks.AppendEvent(ctx, taskID, models.TaskEventRescheduled, "Unpostponed by user"); err != nil {
		return false, err
	}
	return s.ScheduleTask(ctx, userID, taskID)
}

// Snooze pushes a scheduled task to start minutes from now, preserving its
// original interval length.
func (s *Scheduler) Snooze(ctx context.Context, userID, taskID uuid.UUID, minutes int) error {
	task, err := s.Tasks.GetByID(ctx, taskID, userID)
	if err != nil {
		return err
	}
	if task.Status != models.TaskStatusScheduled || !task.IsScheduled() {
		return fmt.Errorf("task %s is not scheduled: %w", taskID, models.ErrInvalidState)
	}

	duration := task.ScheduledEnd.Sub(*task.ScheduledStart)
	newStart := s.now().Add(time.Duration(minutes) * time.Minute)
	newEnd := newStart.Add(duration)

	if err := s.Tasks.UpdateSchedule(ctx, taskID, userID, newStart, newEnd, models.TaskStatusScheduled); err != nil {
		return err
	}
	reason := fmt.Sprintf("Snoozed for %d minutes", minutes)
	if err := s.Tasks.AppendEvent(ctx, taskID, models.TaskEventRescheduled, reason); err != nil {
		return err
	}

	task.ScheduledStart, task.ScheduledEnd = &newStart, &newEnd
	s.emit(task, models.TaskEventRescheduled)
	return nil
}

// Extend moves a scheduled task's end later by minutes; the start stays put.
func (s *Scheduler) Extend(ctx context.Context, userID, taskID uuid.UUID, minutes int) error {
	task, err := s.Tasks.GetByID(ctx, taskID, userID)
	if err != nil {
		return err
	}
	if task.Status != models.TaskStatusScheduled || !task.IsScheduled() {
		return fmt.Errorf("task %s is not scheduled: %w", taskID, models.ErrInvalidState)
	}

	newEnd := task.ScheduledEnd.Add(time.Duration(minutes) * time.Minute)
	if err := s.Tasks.UpdateSchedule(ctx, taskID, userID, *task.ScheduledStart, newEnd, models.TaskStatusScheduled); err != nil {
		return err
	}
	reason := fmt.Sprintf("Extended by %d minutes", minutes)
	if err := s.Tasks.AppendEvent(ctx, taskID, models.TaskEventRescheduled, reason); err != nil {
		return err
	}

	task.ScheduledEnd = &newEnd
	s.emit(task, models.TaskEventRescheduled)
	return nil
}

// Swap exchanges the intervals of two scheduled tasks atomically.
func (s *Scheduler) Swap(ctx context.Context, userID, taskA, taskB uuid.UUID) error {
	if err := s.Tasks.SwapSchedules(ctx, userID, taskA, taskB); err != nil {
		return err
	}
	for _, id := range []uuid.UUID{taskA, taskB} {
		task, err := s.Tasks.GetByID(ctx, id, userID)
		if err != nil {
			continue
		}
		s.emit(task, models.TaskEventRescheduled)
	}
	return nil
}

// UpdateWorkingHours persists new workday boundaries and, when reschedule is
// set, resets every PENDING/SCHEDULED task and re-runs the batch scheduler
// under the new window.
func (s *Scheduler) UpdateWorkingHours(ctx context.Context, userID uuid.UUID, startMin, endMin int, reschedule bool) (scheduled, failed int, err error) {
	if startMin < 0 || endMin > 24*60 || endMin <= startMin {
		return 0, 0, fmt.Errorf("workday end must be after start: %w", models.ErrInvalidState)
	}
	if err := s.Users.UpdateWorkingHours(ctx, userID, startMin, endMin); err != nil {
		return 0, 0, err
	}
	if !reschedule {
		return 0, 0, nil
	}
	if _, err := s.Tasks.ClearForReschedule(ctx, userID); err != nil {
		return 0, 0, err
	}
	return s.ScheduleAllPending(ctx, userID)
}
