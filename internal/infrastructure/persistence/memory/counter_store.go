// Package memory provides an in-process counter store for development, the CLI and tests
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

type item struct {
	value     []byte
	counter   int64
	isCounter bool
	expiresAt time.Time // zero means no expiry
}

func (i item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// CounterStore implements outbound.CounterStore with one mutex guarding every operation
type CounterStore struct {
	mu   sync.Mutex
	data map[string]item
	now  func() time.Time
}

var _ outbound.CounterStore = (*CounterStore)(nil)

// NewCounterStore creates an empty store
func NewCounterStore() *CounterStore {
	return &CounterStore{data: make(map[string]item), now: time.Now}
}

// WithClock replaces the expiry clock, for tests that move time forward
func (s *CounterStore) WithClock(now func() time.Time) *CounterStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// lookup returns the live item; callers hold the lock
func (s *CounterStore) lookup(key string, now time.Time) (item, bool) {
	it, ok := s.data[key]
	if !ok {
		return item{}, false
	}
	if it.expired(now) {
		delete(s.data, key)
		return item{}, false
	}
	return it, true
}

func (s *CounterStore) counterValue(key string, now time.Time) (item, int64, error) {
	it, ok := s.lookup(key, now)
	if !ok {
		return item{}, 0, nil
	}
	if it.isCounter {
		return it, it.counter, nil
	}
	v, err := strconv.ParseInt(string(it.value), 10, 64)
	if err != nil {
		return it, 0, eris.Wrapf(err, "key %q does not hold a counter", key)
	}
	return it, v, nil
}

// IncrementWithin applies every increment or none
func (s *CounterStore) IncrementWithin(ctx context.Context, incs ...outbound.CounterIncrement) (outbound.CounterResult, error) {
	if err := ctx.Err(); err != nil {
		return outbound.CounterResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	current := make([]int64, len(incs))
	items := make([]item, len(incs))
	allowed := true
	for i, inc := range incs {
		it, v, err := s.counterValue(inc.Key, now)
		if err != nil {
			return outbound.CounterResult{}, err
		}
		items[i], current[i] = it, v
		if inc.Limit >= 0 && v+inc.Delta > inc.Limit {
			allowed = false
		}
	}
	if !allowed {
		return outbound.CounterResult{Allowed: false, Values: current}, nil
	}

	values := make([]int64, len(incs))
	for i, inc := range incs {
		values[i] = s.add(inc.Key, items[i], current[i], inc.Delta, inc.TTL, now)
		// Later legs on the same key see earlier ones.
		items[i] = s.data[inc.Key]
		for j := i + 1; j < len(incs); j++ {
			if incs[j].Key == inc.Key {
				items[j], current[j] = items[i], values[i]
			}
		}
	}
	return outbound.CounterResult{Allowed: true, Values: values}, nil
}

func (s *CounterStore) add(key string, it item, current, delta int64, ttl time.Duration, now time.Time) int64 {
	next := item{counter: current + delta, isCounter: true, expiresAt: it.expiresAt}
	if next.expiresAt.IsZero() && ttl > 0 {
		next.expiresAt = now.Add(ttl)
	}
	s.data[key] = next
	return next.counter
}

// IncrementBy adds delta unconditionally
func (s *CounterStore) IncrementBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	it, v, err := s.counterValue(key, now)
	if err != nil {
		return 0, err
	}
	return s.add(key, it, v, delta, ttl, now), nil
}

// Counter reads a counter, zero when absent
func (s *CounterStore) Counter(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, v, err := s.counterValue(key, s.now())
	return v, err
}

// Get returns the stored bytes
func (s *CounterStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.lookup(key, s.now())
	if !ok {
		return nil, cookcard.ErrNotFound
	}
	if it.isCounter {
		return []byte(strconv.FormatInt(it.counter, 10)), nil
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores bytes; a non-positive ttl never expires
func (s *CounterStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = it
	return nil
}

// TTL reports the remaining lifetime of a key, or zero for none
func (s *CounterStore) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	it, ok := s.lookup(key, now)
	if !ok || it.expiresAt.IsZero() {
		return 0
	}
	return it.expiresAt.Sub(now)
}

// Sweep drops expired entries and reports how many remain
func (s *CounterStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, it := range s.data {
		if it.expired(now) {
			delete(s.data, k)
		}
	}
	return len(s.data)
}

// Ping always succeeds
func (s *CounterStore) Ping(ctx context.Context) error {
	return nil
}
