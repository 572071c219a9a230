package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
)

func TestMediaMinutes(t *testing.T) {
	tests := []struct {
		seconds int
		want    int64
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{60, 1},
		{61, 2},
		{185, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MediaMinutes(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestBudgetLedger_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownDuration", func(t *testing.T) {
		clock := newTestClock()
		b := NewBudgetLedger(newTestStore(clock), testConfig(), clock.Now)
		_, err := b.Reserve(ctx, "user-a", cookcard.TierPro, 0)
		assert.ErrorIs(t, err, cookcard.ErrUnknownDuration)
	})

	t.Run("FreeTierHasNoVisionMinutes", func(t *testing.T) {
		clock := newTestClock()
		b := NewBudgetLedger(newTestStore(clock), testConfig(), clock.Now)
		_, err := b.Reserve(ctx, "user-a", cookcard.TierFree, 60)
		assert.ErrorIs(t, err, cookcard.ErrBudgetExceeded)
	})

	t.Run("UserCap", func(t *testing.T) {
		clock := newTestClock()
		b := NewBudgetLedger(newTestStore(clock), testConfig(), clock.Now)

		minutes, err := b.Reserve(ctx, "user-a", cookcard.TierPlus, 180)
		require.NoError(t, err)
		assert.Equal(t, int64(3), minutes)

		_, err = b.Reserve(ctx, "user-a", cookcard.TierPlus, 180)
		assert.ErrorIs(t, err, cookcard.ErrBudgetExceeded)

		global, user, err := b.Usage(ctx, "user-a")
		require.NoError(t, err)
		assert.Equal(t, int64(3), global)
		assert.Equal(t, int64(3), user)
	})

	t.Run("GlobalCapDeniesWithoutTouchingUserCounter", func(t *testing.T) {
		clock := newTestClock()
		cfg := testConfig()
		cfg.GlobalVisionMinutesDaily = 4
		b := NewBudgetLedger(newTestStore(clock), cfg, clock.Now)

		_, err := b.Reserve(ctx, "user-a", cookcard.TierPro, 180)
		require.NoError(t, err)
		_, err = b.Reserve(ctx, "user-b", cookcard.TierPro, 120)
		assert.ErrorIs(t, err, cookcard.ErrBudgetExceeded)

		global, user, err := b.Usage(ctx, "user-b")
		require.NoError(t, err)
		assert.Equal(t, int64(3), global)
		assert.Equal(t, int64(0), user)
	})

	t.Run("ZeroGlobalCapClosesVision", func(t *testing.T) {
		clock := newTestClock()
		cfg := testConfig()
		cfg.GlobalVisionMinutesDaily = 0
		b := NewBudgetLedger(newTestStore(clock), cfg, clock.Now)
		_, err := b.Reserve(ctx, "user-a", cookcard.TierPro, 60)
		assert.ErrorIs(t, err, cookcard.ErrBudgetExceeded)
	})

	t.Run("StoreFailureDenies", func(t *testing.T) {
		b := NewBudgetLedger(failingStore{}, testConfig(), newTestClock().Now)
		_, err := b.Reserve(ctx, "user-a", cookcard.TierPro, 60)
		assert.ErrorIs(t, err, cookcard.ErrBudgetExceeded)
	})

	t.Run("NewDayResetsCounters", func(t *testing.T) {
		clock := newTestClock()
		b := NewBudgetLedger(newTestStore(clock), testConfig(), clock.Now)
		_, err := b.Reserve(ctx, "user-a", cookcard.TierPlus, 300)
		require.NoError(t, err)
		_, err = b.Reserve(ctx, "user-a", cookcard.TierPlus, 60)
		require.ErrorIs(t, err, cookcard.ErrBudgetExceeded)

		clock.Advance(24 * time.Hour)
		_, err = b.Reserve(ctx, "user-a", cookcard.TierPlus, 60)
		assert.NoError(t, err)
	})
}

func TestBudgetLedger_Monotonic(t *testing.T) {
	// Usage only grows and never passes a cap, whatever the order of requests.
	clock := newTestClock()
	cfg := testConfig()
	cfg.GlobalVisionMinutesDaily = 20
	b := NewBudgetLedger(newTestStore(clock), cfg, clock.Now)
	ctx := context.Background()

	durations := []int{60, 300, 45, 900, 120, 30, 600, 61, 59, 240, 120, 60}
	var lastGlobal, lastUser int64
	for _, d := range durations {
		_, _ = b.Reserve(ctx, "user-a", cookcard.TierPro, d)
		global, user, err := b.Usage(ctx, "user-a")
		require.NoError(t, err)

		assert.GreaterOrEqual(t, global, lastGlobal)
		assert.GreaterOrEqual(t, user, lastUser)
		assert.LessOrEqual(t, global, int64(20))
		assert.LessOrEqual(t, user, int64(15))
		lastGlobal, lastUser = global, user
	}
	assert.Equal(t, int64(15), lastUser, "pro tier fills its daily allowance")
}

func TestBudgetLedger_Status(t *testing.T) {
	clock := newTestClock()
	b := NewBudgetLedger(newTestStore(clock), testConfig(), clock.Now)
	ctx := context.Background()

	_, err := b.Reserve(ctx, "user-a", cookcard.TierPlus, 150)
	require.NoError(t, err)

	usage, err := b.Status(ctx, "user-a", cookcard.TierPlus)
	require.NoError(t, err)
	assert.Equal(t, cookcard.DayStart(testNow), usage.Day)
	assert.Equal(t, int64(3), usage.MinutesToday)
	assert.Equal(t, int64(5), usage.DailyLimit)
	assert.Equal(t, int64(2), usage.Remaining())

	other, err := b.Status(ctx, "user-b", cookcard.TierFree)
	require.NoError(t, err)
	assert.Zero(t, other.MinutesToday)
	assert.Zero(t, other.Remaining())

	_, err = NewBudgetLedger(failingStore{}, testConfig(), clock.Now).Status(ctx, "user-a", cookcard.TierPlus)
	assert.ErrorIs(t, err, cookcard.ErrStoreUnavailable)
}
