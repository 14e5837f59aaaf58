package scheduler

import (
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
)

// ResolveWorkWindow turns the user's workday minute offsets into a concrete
// [workStart, workEnd) window on the given date. When the date is today the
// start is floored to "now" so nothing is placed in the past, and a
// same-day earliestStart (typically the task's creation time) raises it
// further.
func ResolveWorkWindow(user *models.User, date, now time.Time, earliestStart *time.Time) (time.Time, time.Time) {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	workStart := midnight.Add(time.Duration(user.WorkdayStartMin) * time.Minute)
	workEnd := midnight.Add(time.Duration(user.WorkdayEndMin) * time.Minute)

	if sameDay(date, now) && now.After(workStart) {
		workStart = now
	}
	if earliestStart != nil && sameDay(date, *earliestStart) && earliestStart.After(workStart) {
		workStart = *earliestStart
	}
	return workStart, workEnd
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// userLocation resolves the user's timezone, falling back to UTC when the
// stored name is empty or unknown.
func userLocation(user *models.User) *time.Location {
	if user.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
