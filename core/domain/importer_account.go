package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is an external social account linked by a user. Token fields hold
// plaintext only in memory; the repository encrypts them at rest.
type Account struct {
	ID           int64     `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Provider     Provider  `json:"provider" db:"provider"`
	ExternalID   string    `json:"external_id" db:"external_id"`
	Username     string    `json:"username" db:"username"`
	Token        string    `json:"-" db:"token"`
	TokenSecret  string    `json:"-" db:"token_secret"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// HasUserToken reports whether the account can act on behalf of its owner.
func (a *Account) HasUserToken() bool {
	return a != nil && a.Token != ""
}
