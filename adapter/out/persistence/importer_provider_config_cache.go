package persistence

import (
	"context"
	"time"

	"importer_server/core/domain"
	"importer_server/core/port/out"
	"importer_server/pkg/cache"
	"importer_server/pkg/logger"
)

const providerConfigKeyPrefix = "importer:provider_config:"

// CachedProviderConfigs reads provider configuration through a Redis cache.
// Only present configurations are cached so that enabling a provider takes
// effect immediately.
type CachedProviderConfigs struct {
	next  out.ProviderConfigRepository
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewCachedProviderConfigs wraps next with a cache entry lifetime of ttl.
func NewCachedProviderConfigs(next out.ProviderConfigRepository, c *cache.RedisCache, ttl time.Duration) *CachedProviderConfigs {
	return &CachedProviderConfigs{next: next, cache: c, ttl: ttl}
}

func (r *CachedProviderConfigs) GetProviderConfig(ctx context.Context, provider domain.Provider) (*out.ProviderConfig, error) {
	key := providerConfigKeyPrefix + provider.String()

	var cached out.ProviderConfig
	found, err := r.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		logger.Warn("[ProviderConfigCache] read %s: %v", key, err)
	} else if found {
		return &cached, nil
	}

	cfg, err := r.next.GetProviderConfig(ctx, provider)
	if err != nil || cfg == nil {
		return cfg, err
	}

	if err := r.cache.SetJSON(ctx, key, cfg, r.ttl); err != nil {
		logger.Warn("[ProviderConfigCache] write %s: %v", key, err)
	}
	return cfg, nil
}

// Invalidate drops the cached configuration of provider.
func (r *CachedProviderConfigs) Invalidate(ctx context.Context, provider domain.Provider) error {
	return r.cache.Delete(ctx, providerConfigKeyPrefix+provider.String())
}

var _ out.ProviderConfigRepository = (*CachedProviderConfigs)(nil)
