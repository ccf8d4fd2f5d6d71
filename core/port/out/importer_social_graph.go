package out

import (
	"context"
	"errors"
	"fmt"

	"importer_server/core/domain"
)

// Cursor sentinels shared by every provider adapter.
const (
	CursorStart = "-1"
	CursorEnd   = "0"
)

// =============================================================================
// Social Graph Port (Twitter, Google)
// =============================================================================

// SocialGraphClient reads the connections of one authenticated account.
type SocialGraphClient interface {
	// ListConnections returns one page of connection ids starting at cursor.
	ListConnections(ctx context.Context, cursor string) (*ConnectionPage, error)
	// LookupBatch resolves up to 100 ids to profiles.
	LookupBatch(ctx context.Context, ids []string) ([]*ProfileRecord, error)
}

// ConnectionPage is one page of a cursor-paginated listing.
type ConnectionPage struct {
	IDs        []string
	NextCursor string
}

// ProfileRecord is a provider-neutral raw profile.
type ProfileRecord struct {
	ID           string
	DisplayName  string
	GivenName    string
	FamilyName   string
	ScreenName   string
	Emails       []string
	Phones       []string
	PhotoURL     string
	URLs         []string
	Note         string
	Location     string
	Organization string
	Title        string
	ProfileURL   string
}

// SocialGraphFactory opens a client session for an account.
type SocialGraphFactory interface {
	NewClient(ctx context.Context, provider domain.Provider, cfg *ProviderConfig, account *domain.Account) (SocialGraphClient, error)
}

// =============================================================================
// Provider Configuration
// =============================================================================

// ProviderConfig holds the application credentials of a provider.
// For Twitter these are the consumer key/secret, for Google the OAuth client id/secret.
type ProviderConfig struct {
	Provider       domain.Provider   `json:"provider"`
	ConsumerKey    string            `json:"consumer_key"`
	ConsumerSecret string            `json:"consumer_secret"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// IsComplete reports whether a client session can be opened with this config.
func (c *ProviderConfig) IsComplete() bool {
	return c != nil && c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// ProviderConfigRepository resolves provider configuration.
// GetProviderConfig returns nil, nil when the provider is not configured.
type ProviderConfigRepository interface {
	GetProviderConfig(ctx context.Context, provider domain.Provider) (*ProviderConfig, error)
}

// =============================================================================
// Transport Errors
// =============================================================================

// TransportError is a failed remote call. StatusCode is 0 when the failure
// happened before a response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error.
func NewTransportError(statusCode int, err error) *TransportError {
	return &TransportError{StatusCode: statusCode, Err: err}
}

// StatusCode extracts the transport status from an error chain, 0 when absent.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
