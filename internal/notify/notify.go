package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Options describes one user-facing notification.
type Options struct {
	Title string
	Body  string
	Tag   string
}

// Notifier delivers notifications about scheduled tasks. The scheduling core
// never calls this directly; the request layer subscribes it to task events.
type Notifier interface {
	RequestPermission(ctx context.Context, userID uuid.UUID) error
	Show(ctx context.Context, userID uuid.UUID, opts Options) error
	ScheduleAt(ctx context.Context, userID uuid.UUID, at time.Time, opts Options) (string, error)
	Cancel(ctx context.Context, id string) error
}

// LogNotifier writes notifications to the log. Stands in until a push/email
// delivery backend is wired up.
type LogNotifier struct{}

func NewLogNotifier() LogNotifier {
	return LogNotifier{}
}

func (LogNotifier) RequestPermission(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (LogNotifier) Show(ctx context.Context, userID uuid.UUID, opts Options) error {
	log.Printf("notify user %s: %s - %s", userID, opts.Title, opts.Body)
	return nil
}

func (LogNotifier) ScheduleAt(ctx context.Context, userID uuid.UUID, at time.Time, opts Options) (string, error) {
	id := uuid.New().String()
	log.Printf("notify user %s at %s (%s): %s", userID, at.Format(time.RFC3339), id, opts.Title)
	return id, nil
}

func (LogNotifier) Cancel(ctx context.Context, id string) error {
	log.Printf("cancel notification %s", id)
	return nil
}
