// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces the extraction pipeline needs from infrastructure
package outbound

import (
	"context"
	"time"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/google/uuid"
)

// CounterIncrement is one leg of a conditional multi-key increment
type CounterIncrement struct {
	Key   string
	Delta int64
	// Limit caps the post-increment value; a negative limit is unlimited.
	Limit int64
	// TTL is applied only when the key has no expiry yet, so fixed windows never slide.
	TTL time.Duration
}

// CounterResult reports the outcome of a conditional increment
type CounterResult struct {
	Allowed bool
	// Values holds the post-increment values when allowed, or the unchanged current values when denied.
	Values []int64
}

// CounterStore is the shared key/counter store. Every mutation is a single atomic operation.
type CounterStore interface {
	// IncrementWithin increments every key iff each new value stays within its limit.
	// Either all keys are incremented or none is.
	IncrementWithin(ctx context.Context, incs ...CounterIncrement) (CounterResult, error)
	// IncrementBy unconditionally adds delta; ttl is applied only when the key has no expiry.
	IncrementBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	// Counter reads a counter, returning zero for a missing or expired key.
	Counter(ctx context.Context, key string) (int64, error)
	// Get returns cookcard.ErrNotFound for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// StoredCard is a persisted CookCard with the request attribution kept alongside it
type StoredCard struct {
	Card        *cookcard.CookCard
	RequesterID string
	GroupID     string
}

// CookCardRepository persists assembled cards for downstream consumers
type CookCardRepository interface {
	Save(ctx context.Context, card *cookcard.CookCard, requesterID, groupID string) error
	FindByID(ctx context.Context, id uuid.UUID) (*StoredCard, error)
	ListByGroup(ctx context.Context, groupID string, limit int) ([]*StoredCard, error)
}

// TierResolver maps a requester to a subscription tier
type TierResolver interface {
	ResolveTier(ctx context.Context, requesterID string) (cookcard.Tier, error)
}

// TierRepository is the writable side of tier resolution
type TierRepository interface {
	TierResolver
	AssignTier(ctx context.Context, requesterID string, tier cookcard.Tier) error
}
