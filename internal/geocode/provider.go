// Package geocode implements the reverse-geocoding provider chain: a network
// provider wrapped by a persistent cache.
package geocode

import (
	"context"
	"strings"

	"geomedia-api/internal/models"

	"github.com/rs/zerolog/log"
)

// Provider turns a location into a normalized geocoder envelope. The bool
// is false when no result could be produced.
type Provider interface {
	Lookup(ctx context.Context, loc models.Location) (string, bool)
}

// Store is a durable, insert-only key/value table of envelopes keyed by
// Location.CacheKey.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// CachingProvider answers from a Store and falls through to the wrapped
// provider on a miss, storing non-empty results.
type CachingProvider struct {
	store Store
	inner Provider
}

// NewCachingProvider wraps inner with store.
func NewCachingProvider(store Store, inner Provider) *CachingProvider {
	return &CachingProvider{store: store, inner: inner}
}

// Lookup implements Provider.
func (p *CachingProvider) Lookup(ctx context.Context, loc models.Location) (string, bool) {
	if loc.IsNone() {
		return "", false
	}

	key := loc.CacheKey()
	value, found, err := p.store.Get(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Location cache lookup failed")
	} else if found {
		return value, true
	}

	value, ok := p.inner.Lookup(ctx, loc)
	if !ok || strings.TrimSpace(value) == "" {
		log.Warn().Str("key", key).Msg("Ignoring empty geocoder result")
		return "", false
	}

	if err := p.store.Put(ctx, key, value); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Location cache store failed")
	}
	return value, true
}
