package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"importer_server/core/domain"
	"importer_server/core/port/out"
	"importer_server/pkg/crypto"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AccountAdapter implements out.AccountRepository using PostgreSQL. Tokens
// are sealed at rest and opened on read.
type AccountAdapter struct {
	db     *sqlx.DB
	sealer *crypto.Sealer
}

// NewAccountAdapter creates a new AccountAdapter.
func NewAccountAdapter(db *sqlx.DB, sealer *crypto.Sealer) *AccountAdapter {
	return &AccountAdapter{db: db, sealer: sealer}
}

type accountRow struct {
	ID           int64          `db:"id"`
	UserID       uuid.UUID      `db:"user_id"`
	Provider     string         `db:"provider"`
	ExternalID   string         `db:"external_id"`
	Username     string         `db:"username"`
	Token        sql.NullString `db:"token"`
	TokenSecret  sql.NullString `db:"token_secret"`
	RefreshToken sql.NullString `db:"refresh_token"`
	ExpiresAt    sql.NullTime   `db:"expires_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *accountRow) toDomain() *domain.Account {
	return &domain.Account{
		ID:           r.ID,
		UserID:       r.UserID,
		Provider:     domain.Provider(r.Provider),
		ExternalID:   r.ExternalID,
		Username:     r.Username,
		Token:        r.Token.String,
		TokenSecret:  r.TokenSecret.String,
		RefreshToken: r.RefreshToken.String,
		ExpiresAt:    r.ExpiresAt.Time,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// GetByID returns ErrNotFound when the account does not exist.
func (a *AccountAdapter) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `
		SELECT id, user_id, provider, external_id, username, token, token_secret,
		       refresh_token, expires_at, created_at, updated_at
		FROM social_accounts
		WHERE id = $1`

	var row accountRow
	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}

	account := row.toDomain()
	if err := a.sealer.OpenAll(&account.Token, &account.TokenSecret, &account.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to open tokens of account %d: %w", id, err)
	}
	return account, nil
}

var _ out.AccountRepository = (*AccountAdapter)(nil)
