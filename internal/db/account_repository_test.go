package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
)

func newAccount(userID uuid.UUID, provider string) *models.CalendarAccount {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.CalendarAccount{
		ID:           uuid.New(),
		UserID:       userID,
		Provider:     provider,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAccountRepositoryUpsertAndGet(t *testing.T) {
	dbx := setupDB(t)
	repo := NewAccountRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()

	acct := newAccount(userID, "google")
	if err := repo.Upsert(ctx, acct); err != nil {
		t.Fatalf("Upsert create: %v", err)
	}

	got, err := repo.GetByUserAndProvider(ctx, userID, "google")
	if err != nil {
		t.Fatalf("GetByUserAndProvider: %v", err)
	}
	if got.AccessToken != "access-1" || got.RefreshToken != "refresh-1" {
		t.Errorf("tokens = (%q, %q)", got.AccessToken, got.RefreshToken)
	}

	// second upsert for the same provider replaces tokens, not the row
	updated := newAccount(userID, "google")
	updated.AccessToken = "access-2"
	updated.RefreshToken = "refresh-2"
	if err := repo.Upsert(ctx, updated); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	after, _ := repo.GetByUserAndProvider(ctx, userID, "google")
	if after.ID != got.ID {
		t.Errorf("upsert created a new row: %s != %s", after.ID, got.ID)
	}
	if after.AccessToken != "access-2" {
		t.Errorf("access token = %q, want access-2", after.AccessToken)
	}

	if _, err := repo.GetByUserAndProvider(ctx, userID, "microsoft"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing provider err = %v, want ErrNotFound", err)
	}
}

func TestAccountRepositoryListByUser(t *testing.T) {
	dbx := setupDB(t)
	repo := NewAccountRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()

	if err := repo.Upsert(ctx, newAccount(userID, "google")); err != nil {
		t.Fatalf("Upsert google: %v", err)
	}
	ms := newAccount(userID, "microsoft")
	ms.CreatedAt = ms.CreatedAt.Add(time.Minute)
	if err := repo.Upsert(ctx, ms); err != nil {
		t.Fatalf("Upsert microsoft: %v", err)
	}
	if err := repo.Upsert(ctx, newAccount(uuid.New(), "google")); err != nil {
		t.Fatalf("Upsert other user: %v", err)
	}

	accounts, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}
	if accounts[0].Provider != "google" || accounts[1].Provider != "microsoft" {
		t.Errorf("order = [%s, %s], want creation order", accounts[0].Provider, accounts[1].Provider)
	}
}

func TestAccountRepositoryUpdateTokens(t *testing.T) {
	dbx := setupDB(t)
	repo := NewAccountRepository(dbx)
	ctx := context.Background()
	userID := uuid.New()

	acct := newAccount(userID, "microsoft")
	if err := repo.Upsert(ctx, acct); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	stored, _ := repo.GetByUserAndProvider(ctx, userID, "microsoft")

	expires := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	if err := repo.UpdateTokens(ctx, stored.ID, "new-access", "new-refresh", expires); err != nil {
		t.Fatalf("UpdateTokens: %v", err)
	}
	got, _ := repo.GetByUserAndProvider(ctx, userID, "microsoft")
	if got.AccessToken != "new-access" || got.RefreshToken != "new-refresh" {
		t.Errorf("tokens = (%q, %q)", got.AccessToken, got.RefreshToken)
	}
	if !got.ExpiresAt.Equal(expires) {
		t.Errorf("expires_at = %v, want %v", got.ExpiresAt, expires)
	}

	if err := repo.UpdateTokens(ctx, uuid.New(), "x", "y", expires); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown account err = %v, want ErrNotFound", err)
	}
}
