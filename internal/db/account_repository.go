package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/google/uuid"
)

// defines methods for calendar account db operations
type AccountRepositoryInterface interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.CalendarAccount, error)
	GetByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*models.CalendarAccount, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error
	Upsert(ctx context.Context, account *models.CalendarAccount) error
}

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, user_id, provider, access_token, refresh_token, expires_at, created_at, updated_at`

func (r *AccountRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.CalendarAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM calendar_accounts WHERE user_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.CalendarAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *AccountRepository) GetByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*models.CalendarAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM calendar_accounts WHERE user_id = $1 AND provider = $2`
	return scanAccount(r.db.QueryRowContext(ctx, query, userID, provider))
}

func scanAccount(row rowScanner) (*models.CalendarAccount, error) {
	acct := &models.CalendarAccount{}
	var refresh sql.NullString
	err := row.Scan(
		&acct.ID, &acct.UserID, &acct.Provider, &acct.AccessToken, &refresh,
		&acct.ExpiresAt, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acct.RefreshToken = refresh.String
	return acct, nil
}

// UpdateTokens persists a refreshed token pair for an account.
func (r *AccountRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `UPDATE calendar_accounts SET access_token = $1, refresh_token = $2, expires_at = $3, updated_at = $4
	 WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, accessToken, nullString(refreshToken), expiresAt, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Upsert creates the account link or replaces the tokens of an existing one.
func (r *AccountRepository) Upsert(ctx context.Context, account *models.CalendarAccount) error {
	existing, err := r.GetByUserAndProvider(ctx, account.UserID, account.Provider)
	if err == nil {
		return r.UpdateTokens(ctx, existing.ID, account.AccessToken, account.RefreshToken, account.ExpiresAt)
	}
	if err != models.ErrNotFound {
		return err
	}
	return r.create(ctx, account)
}

func (r *AccountRepository) create(ctx context.Context, account *models.CalendarAccount) error {
	query := `INSERT INTO calendar_accounts (` + accountColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(
		ctx, query, account.ID, account.UserID, account.Provider, account.AccessToken,
		nullString(account.RefreshToken), account.ExpiresAt, account.CreatedAt, account.UpdatedAt)
	return err
}
