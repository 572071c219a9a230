package testutils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// StoreFactory builds a fresh store and a function that moves its clock forward
type StoreFactory func(t *testing.T) (outbound.CounterStore, func(time.Duration))

// RunCounterStoreContract checks the behavior every CounterStore implementation must share
func RunCounterStoreContract(t *testing.T, factory StoreFactory) {
	ctx := context.Background()

	t.Run("increment within limit", func(t *testing.T) {
		store, _ := factory(t)
		inc := outbound.CounterIncrement{Key: "rate:{u1}:h", Delta: 1, Limit: 2, TTL: time.Hour}

		for want := int64(1); want <= 2; want++ {
			res, err := store.IncrementWithin(ctx, inc)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, []int64{want}, res.Values)
		}

		res, err := store.IncrementWithin(ctx, inc)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, []int64{2}, res.Values, "a denied increment leaves the counter untouched")

		v, err := store.Counter(ctx, inc.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(2), v)
	})

	t.Run("negative limit is unlimited", func(t *testing.T) {
		store, _ := factory(t)
		inc := outbound.CounterIncrement{Key: "quota:{u1}:m", Delta: 50, Limit: cookcard.Unlimited, TTL: time.Hour}
		for i := 0; i < 5; i++ {
			res, err := store.IncrementWithin(ctx, inc)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
		}
		v, err := store.Counter(ctx, inc.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(250), v)
	})

	t.Run("multi key is all or nothing", func(t *testing.T) {
		store, _ := factory(t)
		global := outbound.CounterIncrement{Key: "budget:{d}:global", Delta: 3, Limit: 10, TTL: time.Hour}
		user := outbound.CounterIncrement{Key: "budget:{d}:user:u1", Delta: 3, Limit: 5, TTL: time.Hour}

		res, err := store.IncrementWithin(ctx, global, user)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, []int64{3, 3}, res.Values)

		res, err = store.IncrementWithin(ctx, global, user)
		require.NoError(t, err)
		assert.False(t, res.Allowed, "user cap would be exceeded")
		assert.Equal(t, []int64{3, 3}, res.Values)

		g, err := store.Counter(ctx, global.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(3), g, "global counter must not move when the user leg fails")
	})

	t.Run("expiry is fixed at first write", func(t *testing.T) {
		store, advance := factory(t)
		inc := outbound.CounterIncrement{Key: "rate:{u2}:h", Delta: 1, Limit: 10, TTL: time.Minute}

		_, err := store.IncrementWithin(ctx, inc)
		require.NoError(t, err)
		advance(40 * time.Second)
		_, err = store.IncrementWithin(ctx, inc)
		require.NoError(t, err)
		advance(30 * time.Second)

		v, err := store.Counter(ctx, inc.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(0), v, "window must not slide on later increments")
	})

	t.Run("increment by", func(t *testing.T) {
		store, _ := factory(t)
		v, err := store.IncrementBy(ctx, "quota:{u3}:cost", 7, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)
		v, err = store.IncrementBy(ctx, "quota:{u3}:cost", -2, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), v)
	})

	t.Run("get and set", func(t *testing.T) {
		store, advance := factory(t)
		_, err := store.Get(ctx, "cookcard:card:missing")
		assert.ErrorIs(t, err, cookcard.ErrNotFound)

		require.NoError(t, store.Set(ctx, "cookcard:card:a", []byte(`{"title":"x"}`), time.Minute))
		data, err := store.Get(ctx, "cookcard:card:a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"title":"x"}`, string(data))

		advance(2 * time.Minute)
		_, err = store.Get(ctx, "cookcard:card:a")
		assert.ErrorIs(t, err, cookcard.ErrNotFound)
	})

	t.Run("concurrent increments never exceed the limit", func(t *testing.T) {
		store, _ := factory(t)
		inc := outbound.CounterIncrement{Key: "quota:{u4}:m", Delta: 1, Limit: 25, TTL: time.Hour}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < 60; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := store.IncrementWithin(ctx, inc)
				if err == nil && res.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 25, allowed)
		v, err := store.Counter(ctx, inc.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(25), v)
	})

	t.Run("ping", func(t *testing.T) {
		store, _ := factory(t)
		assert.NoError(t, store.Ping(ctx))
	})
}
