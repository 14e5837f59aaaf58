package calendar

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
)

// Provider is one external calendar backend. GetFreeBusy failures are
// reported as errors; the aggregator decides to tolerate them.
type Provider interface {
	Name() string
	GetFreeBusy(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]Interval, error)
	CreateEvent(ctx context.Context, userID uuid.UUID, task *models.Task) (string, error)
	DeleteEvent(ctx context.Context, userID uuid.UUID, eventID string) error
}

// AccountStore tells the aggregator which providers a user has linked.
type AccountStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.CalendarAccount, error)
}

// Aggregator fans free/busy queries out to every provider the user has
// linked and merges the results. A failing or slow provider contributes
// nothing instead of failing the whole call: partial data beats no data.
type Aggregator struct {
	providers []Provider
	accounts  AccountStore
	timeout   time.Duration
}

func NewAggregator(accounts AccountStore, timeout time.Duration, providers ...Provider) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{providers: providers, accounts: accounts, timeout: timeout}
}

// GetUserFreeBusy returns the merged busy intervals from all linked
// providers for [start, end). Providers are queried in parallel; each gets
// its own timeout so one hung backend cannot stall the others.
func (a *Aggregator) GetUserFreeBusy(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]Interval, error) {
	linked, err := a.linkedProviders(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(linked) == 0 {
		return nil, nil
	}

	var (
		mu  sync.Mutex
		all []Interval
		wg  sync.WaitGroup
	)
	for _, p := range linked {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			intervals, err := p.GetFreeBusy(pctx, userID, start, end)
			if err != nil {
				log.Printf("free/busy from %s for user %s: %v", p.Name(), userID, err)
				return
			}
			mu.Lock()
			all = append(all, intervals...)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return MergeIntervals(all), nil
}

// CreateEventForTask creates a calendar event on the user's first linked
// provider and returns the provider name and external event id.
func (a *Aggregator) CreateEventForTask(ctx context.Context, userID uuid.UUID, task *models.Task) (string, string, error) {
	linked, err := a.linkedProviders(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if len(linked) == 0 {
		return "", "", nil
	}

	p := linked[0]
	pctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	eventID, err := p.CreateEvent(pctx, userID, task)
	if err != nil {
		return "", "", fmt.Errorf("create event via %s: %w", p.Name(), err)
	}
	return p.Name(), eventID, nil
}

// DeleteEventForTask removes the external event from the provider it was
// created on. Callers treat failures as best-effort.
func (a *Aggregator) DeleteEventForTask(ctx context.Context, userID uuid.UUID, provider, eventID string) error {
	for _, p := range a.providers {
		if p.Name() != provider {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return p.DeleteEvent(pctx, userID, eventID)
	}
	return fmt.Errorf("no provider registered for %q", provider)
}

func (a *Aggregator) linkedProviders(ctx context.Context, userID uuid.UUID) ([]Provider, error) {
	accounts, err := a.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list calendar accounts: %w", err)
	}
	names := make(map[string]bool, len(accounts))
	for _, acct := range accounts {
		names[acct.Provider] = true
	}

	var linked []Provider
	for _, p := range a.providers {
		if names[p.Name()] {
			linked = append(linked, p)
		}
	}
	return linked, nil
}
