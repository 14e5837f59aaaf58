package calendar

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const googleProviderName = "google"

// TokenStore persists per-account OAuth tokens so a refresh survives the
// request that triggered it.
type TokenStore interface {
	GetByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*models.CalendarAccount, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error
}

// GoogleProvider talks to the Google Calendar API on the user's primary
// calendar using tokens stored in the account table.
type GoogleProvider struct {
	oauth    *oauth2.Config
	accounts TokenStore
}

func NewGoogleProvider(cfg *oauth2.Config, accounts TokenStore) *GoogleProvider {
	return &GoogleProvider{oauth: cfg, accounts: accounts}
}

func (p *GoogleProvider) Name() string { return googleProviderName }

// service builds an authenticated Calendar service. An expired access token
// is refreshed once through the oauth2 token source and the new pair is
// written back; a failed refresh surfaces as an error the aggregator skips.
func (p *GoogleProvider) service(ctx context.Context, userID uuid.UUID) (*gcal.Service, error) {
	acct, err := p.accounts.GetByUserAndProvider(ctx, userID, googleProviderName)
	if err != nil {
		return nil, fmt.Errorf("no google account linked: %w", err)
	}

	tok := &oauth2.Token{
		AccessToken:  acct.AccessToken,
		RefreshToken: acct.RefreshToken,
		Expiry:       acct.ExpiresAt,
		TokenType:    "Bearer",
	}
	cur, err := p.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("google token refresh: %w", err)
	}
	if cur.AccessToken != acct.AccessToken {
		refresh := cur.RefreshToken
		if refresh == "" {
			refresh = acct.RefreshToken
		}
		if err := p.accounts.UpdateTokens(ctx, acct.ID, cur.AccessToken, refresh, cur.Expiry); err != nil {
			log.Printf("persist refreshed google token for user %s: %v", userID, err)
		}
	}

	srv, err := gcal.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(cur)))
	if err != nil {
		return nil, fmt.Errorf("unable to build google calendar service: %w", err)
	}
	return srv, nil
}

func (p *GoogleProvider) GetFreeBusy(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]Interval, error) {
	srv, err := p.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: "primary"}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google freebusy query: %w", err)
	}

	cal, ok := resp.Calendars["primary"]
	if !ok {
		return nil, nil
	}
	var intervals []Interval
	for _, b := range cal.Busy {
		s, err := time.Parse(time.RFC3339, b.Start)
		if err != nil {
			continue
		}
		e, err := time.Parse(time.RFC3339, b.End)
		if err != nil {
			continue
		}
		intervals = append(intervals, Interval{Start: s, End: e})
	}
	return intervals, nil
}

func (p *GoogleProvider) CreateEvent(ctx context.Context, userID uuid.UUID, task *models.Task) (string, error) {
	if !task.IsScheduled() {
		return "", fmt.Errorf("task %s has no scheduled interval: %w", task.ID, models.ErrInvalidState)
	}
	srv, err := p.service(ctx, userID)
	if err != nil {
		return "", err
	}

	event := &gcal.Event{
		Summary:     task.Title,
		Description: task.Description,
		Start:       &gcal.EventDateTime{DateTime: task.ScheduledStart.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: task.ScheduledEnd.Format(time.RFC3339)},
	}
	created, err := srv.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google event insert: %w", err)
	}
	return created.Id, nil
}

func (p *GoogleProvider) DeleteEvent(ctx context.Context, userID uuid.UUID, eventID string) error {
	srv, err := p.service(ctx, userID)
	if err != nil {
		return err
	}
	if err := srv.Events.Delete("primary", eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("google event delete: %w", err)
	}
	return nil
}
