package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
)

const microsoftProviderName = "microsoft"

// MicrosoftProvider reads the user's Outlook calendar through the Graph
// REST API. Only two endpoints are used (calendarView and events), so this
// is a plain net/http client rather than an SDK.
type MicrosoftProvider struct {
	accounts     TokenStore
	httpClient   *http.Client
	clientID     string
	clientSecret string
	graphURL     string
	tokenURL     string
}

func NewMicrosoftProvider(accounts TokenStore, clientID, clientSecret, tenantID string) *MicrosoftProvider {
	if tenantID == "" {
		tenantID = "common"
	}
	return &MicrosoftProvider{
		accounts:     accounts,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
		graphURL:     "https://graph.microsoft.com/v1.0",
		tokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
	}
}

func (p *MicrosoftProvider) Name() string { return microsoftProviderName }

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type graphEvent struct {
	ID    string        `json:"id,omitempty"`
	Start graphDateTime `json:"start"`
	End   graphDateTime `json:"end"`
}

func (p *MicrosoftProvider) GetFreeBusy(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]Interval, error) {
	acct, err := p.accounts.GetByUserAndProvider(ctx, userID, microsoftProviderName)
	if err != nil {
		return nil, fmt.Errorf("no microsoft account linked: %w", err)
	}

	q := url.Values{}
	q.Set("startDateTime", start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", end.UTC().Format(time.RFC3339))
	q.Set("$select", "start,end,showAs")
	q.Set("$filter", "showAs ne 'free'")
	reqURL := p.graphURL + "/me/calendarView?" + q.Encode()

	body, err := p.doGraph(ctx, acct, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Value []graphEvent `json:"value"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode calendarView response: %w", err)
	}

	var intervals []Interval
	for _, ev := range resp.Value {
		s, err := parseGraphTime(ev.Start.DateTime)
		if err != nil {
			continue
		}
		e, err := parseGraphTime(ev.End.DateTime)
		if err != nil {
			continue
		}
		intervals = append(intervals, Interval{Start: s, End: e})
	}
	return intervals, nil
}

func (p *MicrosoftProvider) CreateEvent(ctx context.Context, userID uuid.UUID, task *models.Task) (string, error) {
	if !task.IsScheduled() {
		return "", fmt.Errorf("task %s has no scheduled interval: %w", task.ID, models.ErrInvalidState)
	}
	acct, err := p.accounts.GetByUserAndProvider(ctx, userID, microsoftProviderName)
	if err != nil {
		return "", fmt.Errorf("no microsoft account linked: %w", err)
	}

	payload := map[string]any{
		"subject": task.Title,
		"body":    map[string]string{"contentType": "text", "content": task.Description},
		"start":   graphDateTime{DateTime: task.ScheduledStart.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		"end":     graphDateTime{DateTime: task.ScheduledEnd.UTC().Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	body, err := p.doGraph(ctx, acct, http.MethodPost, p.graphURL+"/me/events", buf)
	if err != nil {
		return "", err
	}
	var created graphEvent
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode created event: %w", err)
	}
	return created.ID, nil
}

func (p *MicrosoftProvider) DeleteEvent(ctx context.Context, userID uuid.UUID, eventID string) error {
	acct, err := p.accounts.GetByUserAndProvider(ctx, userID, microsoftProviderName)
	if err != nil {
		return fmt.Errorf("no microsoft account linked: %w", err)
	}
	_, err = p.doGraph(ctx, acct, http.MethodDelete, p.graphURL+"/me/events/"+eventID, nil)
	return err
}

// doGraph performs one authenticated Graph request. A 401 triggers a single
// token refresh and retry; a second failure is returned to the caller.
func (p *MicrosoftProvider) doGraph(ctx context.Context, acct *models.CalendarAccount, method, reqURL string, payload []byte) ([]byte, error) {
	token := acct.AccessToken
	for attempt := 0; attempt < 2; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("graph request: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			token, err = p.refreshToken(ctx, acct)
			if err != nil {
				return nil, fmt.Errorf("microsoft token refresh: %w", err)
			}
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("graph %s %s: status %d", method, reqURL, resp.StatusCode)
		}
		return body, nil
	}
	return nil, fmt.Errorf("graph request retries exhausted")
}

func (p *MicrosoftProvider) refreshToken(ctx context.Context, acct *models.CalendarAccount) (string, error) {
	if acct.RefreshToken == "" {
		return "", fmt.Errorf("no refresh token on account %s", acct.ID)
	}

	form := url.Values{
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
		"refresh_token": {acct.RefreshToken},
		"grant_type":    {"refresh_token"},
		"scope":         {"openid offline_access Calendars.ReadWrite"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	refresh := data.RefreshToken
	if refresh == "" {
		refresh = acct.RefreshToken
	}
	expiresAt := time.Now().Add(time.Duration(data.ExpiresIn) * time.Second)
	if err := p.accounts.UpdateTokens(ctx, acct.ID, data.AccessToken, refresh, expiresAt); err != nil {
		return "", err
	}
	acct.AccessToken = data.AccessToken
	acct.RefreshToken = refresh
	return data.AccessToken, nil
}

// parseGraphTime handles Graph's zone-less dateTime strings, which are UTC
// when the request does not ask for a specific zone.
func parseGraphTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.9999999", s)
}
