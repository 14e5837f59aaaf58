package scheduler

import (
	"testing"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
)

func workdayUser(tz string) *models.User {
	return &models.User{
		Timezone:        tz,
		WorkdayStartMin: 540,  // 09:00
		WorkdayEndMin:   1020, // 17:00
	}
}

func TestResolveWorkWindowFutureDate(t *testing.T) {
	user := workdayUser("UTC")
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)

	start, end := ResolveWorkWindow(user, date, now, nil)
	if !start.Equal(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, want 09:00 next day", start)
	}
	if !end.Equal(time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v, want 17:00 next day", end)
	}
}

func TestResolveWorkWindowFlooredToNow(t *testing.T) {
	user := workdayUser("UTC")
	now := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)

	start, end := ResolveWorkWindow(user, now, now, nil)
	if !start.Equal(now) {
		t.Errorf("start = %v, want floored to now %v", start, now)
	}
	if !end.Equal(time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v, want 17:00", end)
	}
}

func TestResolveWorkWindowBeforeWorkday(t *testing.T) {
	user := workdayUser("UTC")
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

	start, _ := ResolveWorkWindow(user, now, now, nil)
	if !start.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, want workday start when now is earlier", start)
	}
}

func TestResolveWorkWindowEarliestStartSameDay(t *testing.T) {
	user := workdayUser("UTC")
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	earliest := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	start, _ := ResolveWorkWindow(user, now, now, &earliest)
	if !start.Equal(earliest) {
		t.Errorf("start = %v, want raised to earliest %v", start, earliest)
	}
}

func TestResolveWorkWindowEarliestStartOtherDayIgnored(t *testing.T) {
	user := workdayUser("UTC")
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	date := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	earliest := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	start, _ := ResolveWorkWindow(user, date, now, &earliest)
	if !start.Equal(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, a previous-day floor must not carry over", start)
	}
}

func TestResolveWorkWindowRespectsTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	user := workdayUser("America/New_York")
	now := time.Date(2026, 3, 2, 6, 0, 0, 0, loc)

	start, end := ResolveWorkWindow(user, now, now, nil)
	if start.Hour() != 9 || start.Location() != loc {
		t.Errorf("start = %v, want 09:00 local", start)
	}
	if end.Hour() != 17 {
		t.Errorf("end = %v, want 17:00 local", end)
	}
}

func TestUserLocationFallsBackToUTC(t *testing.T) {
	if loc := userLocation(&models.User{Timezone: "Not/AZone"}); loc != time.UTC {
		t.Errorf("unknown zone resolved to %v, want UTC", loc)
	}
	if loc := userLocation(&models.User{}); loc != time.UTC {
		t.Errorf("empty zone resolved to %v, want UTC", loc)
	}
}
