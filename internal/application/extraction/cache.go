package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

const cardKeyPrefix = "cookcard:card:"

// CardCache is the content-addressed card store keyed by normalized URL and pipeline version
type CardCache struct {
	store       outbound.CounterStore
	version     string
	ttl         time.Duration
	fallbackTTL time.Duration
}

// NewCardCache creates a cache bound to one pipeline version
func NewCardCache(store outbound.CounterStore, version string, ttl, fallbackTTL time.Duration) *CardCache {
	return &CardCache{store: store, version: version, ttl: ttl, fallbackTTL: fallbackTTL}
}

// Key returns sha256(normalizedURL | version) under the card prefix
func (c *CardCache) Key(normalizedURL string) string {
	return CardKey(normalizedURL, c.version)
}

// CardKey derives the cache key for a URL under a given pipeline version
func CardKey(normalizedURL, version string) string {
	sum := sha256.Sum256([]byte(normalizedURL + "|" + version))
	return cardKeyPrefix + hex.EncodeToString(sum[:])
}

// Lookup returns the cached card, or false on a miss
func (c *CardCache) Lookup(ctx context.Context, normalizedURL string) (*cookcard.CookCard, bool, error) {
	data, err := c.store.Get(ctx, c.Key(normalizedURL))
	if errors.Is(err, cookcard.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}

	var card cookcard.CookCard
	if err := json.Unmarshal(data, &card); err != nil {
		// An undecodable entry is treated as a miss and overwritten by the fresh result.
		return nil, false, nil
	}
	return &card, true, nil
}

// Store writes a card; metadata-only fallbacks get the shorter TTL so transient failures heal
func (c *CardCache) Store(ctx context.Context, normalizedURL string, card *cookcard.CookCard) error {
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("encode card: %w", err)
	}
	ttl := c.ttl
	if card.IsMetadataOnly() {
		ttl = c.fallbackTTL
	}
	if err := c.store.Set(ctx, c.Key(normalizedURL), data, ttl); err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
