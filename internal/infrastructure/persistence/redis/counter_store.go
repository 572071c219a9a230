// Package redis implements the shared counter store on Redis
package redis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/infrastructure/cache"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// CounterStore implements outbound.CounterStore with one Lua script per mutation
type CounterStore struct {
	client *cache.RedisClient
	logger *zap.Logger
}

var _ outbound.CounterStore = (*CounterStore)(nil)

// NewCounterStore creates the store over a connected client
func NewCounterStore(client *cache.RedisClient, logger *zap.Logger) *CounterStore {
	return &CounterStore{client: client, logger: logger.Named("counter-store")}
}

// IncrementWithin increments every key iff each stays within its limit
func (s *CounterStore) IncrementWithin(ctx context.Context, incs ...outbound.CounterIncrement) (outbound.CounterResult, error) {
	legs := make([]cache.Increment, len(incs))
	for i, inc := range incs {
		legs[i] = cache.Increment{Key: inc.Key, Delta: inc.Delta, Limit: inc.Limit, TTL: inc.TTL}
	}
	allowed, values, err := s.client.IncrementWithin(ctx, legs...)
	if err != nil {
		return outbound.CounterResult{}, err
	}
	if !allowed {
		s.logger.Debug("Conditional increment denied", zap.Int("keys", len(incs)), zap.Int64s("values", values))
	}
	return outbound.CounterResult{Allowed: allowed, Values: values}, nil
}

// IncrementBy adds delta unconditionally
func (s *CounterStore) IncrementBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	return s.client.IncrementBy(ctx, key, delta, ttl)
}

// Counter reads a counter, zero when absent
func (s *CounterStore) Counter(ctx context.Context, key string) (int64, error) {
	return s.client.Counter(ctx, key)
}

// Get returns cookcard.ErrNotFound for a missing key
func (s *CounterStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key)
	if errors.Is(err, cache.ErrKeyNotFound) {
		return nil, cookcard.ErrNotFound
	}
	return data, err
}

// Set stores bytes with a TTL
func (s *CounterStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl)
}

// Ping checks connectivity
func (s *CounterStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
