package patterns

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sentinelstack/sentinel-ops/internal/cache"
	"github.com/sentinelstack/sentinel-ops/internal/models"
)

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, patterns []models.IncidentPattern) error

// StorePatterns implements Store.
func (f StoreFunc) StorePatterns(ctx context.Context, patterns []models.IncidentPattern) error {
	return f(ctx, patterns)
}

const patternsCacheKey = "patterns:latest"

// CacheStore persists the latest mined pattern set in the cache so other
// replicas and the reporting layer can read it without re-mining.
type CacheStore struct {
	provider cache.Provider
	ttl      time.Duration
}

// NewCacheStore wraps a cache provider as a pattern store.
func NewCacheStore(provider cache.Provider, ttl time.Duration) *CacheStore {
	return &CacheStore{provider: provider, ttl: ttl}
}

// StorePatterns serializes the pattern set under a well-known key.
func (s *CacheStore) StorePatterns(ctx context.Context, patterns []models.IncidentPattern) error {
	if s == nil || s.provider == nil {
		return nil
	}
	data, err := json.Marshal(patterns)
	if err != nil {
		return err
	}
	return s.provider.Set(ctx, patternsCacheKey, data, s.ttl)
}

// LoadPatterns returns the most recently stored pattern set, or nil when none
// is cached.
func (s *CacheStore) LoadPatterns(ctx context.Context) ([]models.IncidentPattern, error) {
	if s == nil || s.provider == nil {
		return nil, nil
	}
	data, err := s.provider.Get(ctx, patternsCacheKey)
	if err != nil {
		if err == cache.ErrCacheMiss {
			return nil, nil
		}
		return nil, err
	}
	var patterns []models.IncidentPattern
	if err := json.Unmarshal(data, &patterns); err != nil {
		return nil, err
	}
	return patterns, nil
}
