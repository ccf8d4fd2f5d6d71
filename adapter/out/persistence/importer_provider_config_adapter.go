// Package persistence provides database adapters.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"importer_server/core/domain"
	"importer_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
)

// rowQuerier is the part of *pgxpool.Pool the config adapter uses.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProviderConfigAdapter implements out.ProviderConfigRepository over the
// provider_configs table. Each row holds a jsonb document.
type ProviderConfigAdapter struct {
	db rowQuerier
}

// NewProviderConfigAdapter creates a new ProviderConfigAdapter.
func NewProviderConfigAdapter(db rowQuerier) *ProviderConfigAdapter {
	return &ProviderConfigAdapter{db: db}
}

// GetProviderConfig returns nil, nil when no enabled row exists.
func (a *ProviderConfigAdapter) GetProviderConfig(ctx context.Context, provider domain.Provider) (*out.ProviderConfig, error) {
	query := `SELECT config FROM provider_configs WHERE provider = $1 AND enabled = true`

	var raw []byte
	if err := a.db.QueryRow(ctx, query, provider.String()).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s config: %w", provider, err)
	}

	return decodeProviderConfig(provider, raw)
}

var (
	consumerKeyFields    = []string{"consumer_key", "client_id"}
	consumerSecretFields = []string{"consumer_secret", "client_secret"}
)

// decodeProviderConfig maps {"consumer_key", "consumer_secret", ...} onto a
// ProviderConfig. The Twitter field names win over the OAuth2 aliases. Other
// string keys are kept in Extra.
func decodeProviderConfig(provider domain.Provider, raw []byte) (*out.ProviderConfig, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid %s config document: %w", provider, err)
	}

	cfg := &out.ProviderConfig{
		Provider:       provider,
		ConsumerKey:    firstString(doc, consumerKeyFields),
		ConsumerSecret: firstString(doc, consumerSecretFields),
	}
	for k, v := range doc {
		s, ok := v.(string)
		if !ok || slices.Contains(consumerKeyFields, k) || slices.Contains(consumerSecretFields, k) {
			continue
		}
		if cfg.Extra == nil {
			cfg.Extra = make(map[string]string)
		}
		cfg.Extra[k] = s
	}
	return cfg, nil
}

// firstString returns the first non-empty string value among keys, in order.
func firstString(doc map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

var _ out.ProviderConfigRepository = (*ProviderConfigAdapter)(nil)
