package scheduler

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/chepyr/go-day-planner/internal/calendar"
	"github.com/chepyr/go-day-planner/internal/db"
	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
)

// CalendarService is the slice of the calendar layer the engine consumes.
// Implemented by calendar.Aggregator.
type CalendarService interface {
	GetUserFreeBusy(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]calendar.Interval, error)
	CreateEventForTask(ctx context.Context, userID uuid.UUID, task *models.Task) (provider, eventID string, err error)
	DeleteEventForTask(ctx context.Context, userID uuid.UUID, provider, eventID string) error
}

// EventFunc receives task lifecycle events after they are committed. The
// engine only emits; whoever is interested (websocket hub, notifier)
// subscribes from the outside.
type EventFunc func(task *models.Task, eventType models.TaskEventType)

type Config struct {
	// BufferMinutes is padded before and after every already-scheduled task
	// when deriving gaps.
	BufferMinutes int
	// MinSlotMinutes is the smallest slot the availability view reports.
	MinSlotMinutes int
	// LastHourBufferMin shortens the placement window at the end of the
	// workday. Zero keeps the full window.
	LastHourBufferMin int
	Now               func() time.Time
}

func DefaultConfig() Config {
	return Config{
		BufferMinutes:  15,
		MinSlotMinutes: 15,
		Now:            time.Now,
	}
}

// Scheduler places tasks into concrete time intervals inside the owner's
// working hours, around calendar busy time and already-scheduled tasks.
type Scheduler struct {
	Tasks    db.TaskRepositoryInterface
	Users    db.UserRepositoryInterface
	Calendar CalendarService
	Config   Config
	Events   EventFunc
}

func New(tasks db.TaskRepositoryInterface, users db.UserRepositoryInterface, cal CalendarService, cfg Config) *Scheduler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{Tasks: tasks, Users: users, Calendar: cal, Config: cfg}
}

func (s *Scheduler) now() time.Time {
	if s.Config.Now != nil {
		return s.Config.Now()
	}
	return time.Now()
}

func (s *Scheduler) emit(task *models.Task, eventType models.TaskEventType) {
	if s.Events != nil {
		s.Events(task, eventType)
	}
}

// ScheduleTask finds and commits an interval for one task. It tries today,
// then tomorrow, and reports false when neither day has a viable gap or the
// task is already scheduled. Only persistence failures are errors; "no slot"
// is a normal outcome.
func (s *Scheduler) ScheduleTask(ctx context.Context, userID, taskID uuid.UUID) (bool, error) {
	task, err := s.Tasks.GetByID(ctx, taskID, userID)
	if err != nil {
		return false, err
	}
	if task.Status == models.TaskStatusScheduled {
		return false, nil
	}
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}

	loc := userLocation(user)
	now := s.now().In(loc)
	earliest := task.CreatedAt.In(loc)

	for _, date := range []time.Time{now, now.Add(24 * time.Hour)} {
		slot, ok, err := s.findSlot(ctx, user, date, now, earliest, task)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if err := s.commit(ctx, task, slot); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// findSlot derives the gap list for one date and picks a slot by priority.
func (s *Scheduler) findSlot(ctx context.Context, user *models.User, date, now, earliest time.Time, task *models.Task) (calendar.Interval, bool, error) {
	workStart, workEnd := ResolveWorkWindow(user, date, now, &earliest)
	if s.Config.LastHourBufferMin > 0 {
		workEnd = workEnd.Add(-time.Duration(s.Config.LastHourBufferMin) * time.Minute)
	}
	if !workStart.Before(workEnd) {
		return calendar.Interval{}, false, nil
	}

	// External calendars are best-effort: a failed aggregation degrades
	// accuracy for this call, it does not block scheduling.
	busy, err := s.Calendar.GetUserFreeBusy(ctx, user.ID, workStart, workEnd)
	if err != nil {
		log.Printf("free/busy aggregation for user %s: %v", user.ID, err)
		busy = nil
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	scheduled, err := s.Tasks.ListScheduledInRange(ctx, user.ID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return calendar.Interval{}, false, err
	}
	buffer := time.Duration(s.Config.BufferMinutes) * time.Minute
	for _, st := range scheduled {
		if !st.IsScheduled() {
			continue
		}
		busy = append(busy, calendar.Interval{
			Start: st.ScheduledStart.Add(-buffer),
			End:   st.ScheduledEnd.Add(buffer),
		})
	}

	slots := calendar.FindAvailableSlots(busy, workStart, workEnd, task.EstimatedMinutes)
	if len(slots) == 0 {
		return calendar.Interval{}, false, nil
	}

	// urgent/high work claims the earliest gap; everything else is pushed to
	// the end of the latest gap so mornings stay open for urgent work
	// arriving later in the day.
	duration := time.Duration(task.EstimatedMinutes) * time.Minute
	if task.Priority == models.TaskPriorityUrgent || task.Priority == models.TaskPriorityHigh {
		gap := slots[0]
		return calendar.Interval{Start: gap.Start, End: gap.Start.Add(duration)}, true, nil
	}
	gap := slots[len(slots)-1]
	return calendar.Interval{Start: gap.End.Add(-duration), End: gap.End}, true, nil
}

// commit persists the interval and status, appends the audit event, and then
// best-effort pushes the task to an external calendar. A calendar failure is
// logged and swallowed; it never reverts the committed schedule.
func (s *Scheduler) commit(ctx context.Context, task *models.Task, slot calendar.Interval) error {
	if err := s.Tasks.UpdateSchedule(ctx, task.ID, task.UserID, slot.Start, slot.End, models.TaskStatusScheduled); err != nil {
		return err
	}
	reason := "Auto-scheduled for " + slot.Start.Format("Jan 2, 2006 15:04")
	if err := s.Tasks.AppendEvent(ctx, task.ID, models.TaskEventScheduled, reason); err != nil {
		return err
	}

	task.ScheduledStart = &slot.Start
	task.ScheduledEnd = &slot.End
	task.Status = models.TaskStatusScheduled
	s.emit(task, models.TaskEventScheduled)

	provider, eventID, err := s.Calendar.CreateEventForTask(ctx, task.UserID, task)
	if err != nil {
		log.Printf("calendar event for task %s: %v", task.ID, err)
		return nil
	}
	if eventID != "" {
		if err := s.Tasks.SetCalendarEvent(ctx, task.ID, task.UserID, provider, eventID); err != nil {
			log.Printf("record calendar event id for task %s: %v", task.ID, err)
		}
		task.CalendarProvider = provider
		task.CalendarEventID = eventID
	}
	return nil
}

// ScheduleAllPending schedules every PENDING task of the user, highest
// priority first and oldest first within a priority. Invocations are
// strictly sequential: each task competes only for the capacity its
// predecessors left behind.
func (s *Scheduler) ScheduleAllPending(ctx context.Context, userID uuid.UUID) (scheduled, failed int, err error) {
	pending, err := s.Tasks.ListByUserAndStatus(ctx, userID, models.TaskStatusPending)
	if err != nil {
		return 0, 0, err
	}

	sort.SliceStable(pending, func(i, j int) bool {
		wi, wj := pending[i].Priority.Weight(), pending[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	for _, task := range pending {
		ok, err := s.ScheduleTask(ctx, userID, task.ID)
		if err != nil {
			return scheduled, failed, err
		}
		if ok {
			scheduled++
		} else {
			failed++
		}
	}
	return scheduled, failed, nil
}

// DaySchedule returns the user's scheduled tasks for one date, ascending.
func (s *Scheduler) DaySchedule(ctx context.Context, userID uuid.UUID, date time.Time) ([]*models.Task, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return s.Tasks.ListScheduledInRange(ctx, userID, dayStart, dayStart.Add(24*time.Hour))
}

// Availability reports the free slots of at least MinSlotMinutes within the
// user's work window on a date, based purely on external calendar busy time.
func (s *Scheduler) Availability(ctx context.Context, userID uuid.UUID, date time.Time) ([]calendar.Interval, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := userLocation(user)
	now := s.now().In(loc)
	workStart, workEnd := ResolveWorkWindow(user, date.In(loc), now, nil)
	if !workStart.Before(workEnd) {
		return nil, nil
	}

	busy, err := s.Calendar.GetUserFreeBusy(ctx, userID, workStart, workEnd)
	if err != nil {
		log.Printf("free/busy aggregation for user %s: %v", userID, err)
		busy = nil
	}
	return calendar.FindAvailableSlots(busy, workStart, workEnd, s.Config.MinSlotMinutes), nil
}
