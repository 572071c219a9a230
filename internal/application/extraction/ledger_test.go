package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
)

func TestQuotaLedger_HourlyWindow(t *testing.T) {
	// Free tier allows two requests per hour; the third is refused until the window rolls.
	clock := newTestClock()
	ledger := NewQuotaLedger(newTestStore(clock), testConfig(), clock.Now)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		status, err := ledger.CheckRate(ctx, "user-a", cookcard.TierFree)
		require.NoError(t, err)
		assert.Equal(t, int64(i), status.Count)
		assert.Equal(t, int64(2), status.Limit)
	}

	_, err := ledger.CheckRate(ctx, "user-a", cookcard.TierFree)
	var limited *cookcard.RateLimitedError
	require.True(t, errors.As(err, &limited))
	assert.Equal(t, int64(30), limited.RetryAfterSeconds)
	assert.Equal(t, int64(2), limited.CurrentCount)
	assert.Equal(t, int64(2), limited.Limit)

	// Another requester is unaffected.
	_, err = ledger.CheckRate(ctx, "user-b", cookcard.TierFree)
	assert.NoError(t, err)

	clock.Advance(31 * time.Second)
	status, err := ledger.CheckRate(ctx, "user-a", cookcard.TierFree)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Count, "new hour starts a new window")
}

func TestQuotaLedger_RetryAfterIsAtLeastOneSecond(t *testing.T) {
	assert.Equal(t, int64(1), retryAfter(testNow, testNow))
	assert.Equal(t, int64(1), retryAfter(testNow, testNow.Add(200*time.Millisecond)))
	assert.Equal(t, int64(90), retryAfter(testNow, testNow.Add(90*time.Second)))
}

func TestQuotaLedger_ReserveAndRelease(t *testing.T) {
	clock := newTestClock()
	cfg := testConfig()
	cfg.Tiers[cookcard.TierFree] = cookcard.TierLimits{MonthlyExtractions: 2, HourlyRequests: 10}
	ledger := NewQuotaLedger(newTestStore(clock), cfg, clock.Now)
	ctx := context.Background()

	first, err := ledger.Reserve(ctx, "user-a", cookcard.TierFree)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Used)
	assert.Equal(t, cookcard.MonthStart(testNow), first.Period)

	_, err = ledger.Reserve(ctx, "user-a", cookcard.TierFree)
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, "user-a", cookcard.TierFree)
	var exceeded *cookcard.QuotaExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, cookcard.TierFree, exceeded.Tier)
	assert.Equal(t, int64(2), exceeded.Used)
	assert.Equal(t, int64(2), exceeded.Limit)

	require.NoError(t, ledger.Release(ctx, first))
	_, err = ledger.Reserve(ctx, "user-a", cookcard.TierFree)
	assert.NoError(t, err, "a released slot can be taken again")

	assert.NoError(t, ledger.Release(ctx, Reservation{}), "zero reservation is a no-op")
}

func TestQuotaLedger_ReleaseNeverLeavesAPermanentKey(t *testing.T) {
	clock := newTestClock()
	ctx := context.Background()

	reserved := NewQuotaLedger(newTestStore(clock), testConfig(), clock.Now)
	r, err := reserved.Reserve(ctx, "user-a", cookcard.TierFree)
	require.NoError(t, err)

	// The reservation key is missing from this store, as after an eviction.
	evicted := newTestStore(clock)
	ledger := NewQuotaLedger(evicted, testConfig(), clock.Now)
	require.NoError(t, ledger.Release(ctx, r))

	v, err := evicted.Counter(ctx, r.key)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
	wantTTL := cookcard.MonthStart(testNow).AddDate(0, 1, 0).Sub(testNow) + periodGrace
	assert.Equal(t, wantTTL, evicted.TTL(r.key))

	clock.Advance(wantTTL)
	assert.Zero(t, evicted.Sweep(), "the recreated counter expires with the period")
}

func TestQuotaLedger_ReleaseAfterPeriodLapsedIsNoop(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(clock)
	ledger := NewQuotaLedger(store, testConfig(), clock.Now)
	ctx := context.Background()

	r, err := ledger.Reserve(ctx, "user-a", cookcard.TierFree)
	require.NoError(t, err)

	clock.Advance(60 * 24 * time.Hour)
	require.NoError(t, ledger.Release(ctx, r))
	require.NoError(t, ledger.AddCost(ctx, r, 5))
	assert.Zero(t, store.Sweep())
}

func TestQuotaLedger_UnlimitedTier(t *testing.T) {
	clock := newTestClock()
	ledger := NewQuotaLedger(newTestStore(clock), testConfig(), clock.Now)
	for i := 0; i < 50; i++ {
		_, err := ledger.Reserve(context.Background(), "staff", cookcard.TierInternal)
		require.NoError(t, err)
	}
}

func TestQuotaLedger_UnknownTierUsesFreeLimits(t *testing.T) {
	clock := newTestClock()
	ledger := NewQuotaLedger(newTestStore(clock), testConfig(), clock.Now)
	status, err := ledger.CheckRate(context.Background(), "user-a", cookcard.Tier("gold"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.Limit)
}

func TestQuotaLedger_CostAndStatus(t *testing.T) {
	clock := newTestClock()
	ledger := NewQuotaLedger(newTestStore(clock), testConfig(), clock.Now)
	ctx := context.Background()

	_, err := ledger.CheckRate(ctx, "user-a", cookcard.TierPlus)
	require.NoError(t, err)
	r, err := ledger.Reserve(ctx, "user-a", cookcard.TierPlus)
	require.NoError(t, err)
	require.NoError(t, ledger.AddCost(ctx, r, 7))
	require.NoError(t, ledger.AddCost(ctx, r, 0))

	status, err := ledger.Status(ctx, "user-a", cookcard.TierPlus)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Quota.ExtractionsThisPeriod)
	assert.Equal(t, int64(7), status.Quota.CostAccumulatedCents)
	assert.Equal(t, int64(60), status.Quota.Limit)
	assert.Equal(t, int64(59), status.Quota.Remaining())
	assert.Equal(t, int64(1), status.Rate.Count)
	assert.Equal(t, testNow.Truncate(time.Hour).Add(time.Hour), status.Rate.ExpiresAt)
}

func TestQuotaLedger_StoreFailureFailsClosed(t *testing.T) {
	ledger := NewQuotaLedger(failingStore{}, testConfig(), newTestClock().Now)
	ctx := context.Background()

	_, err := ledger.CheckRate(ctx, "user-a", cookcard.TierFree)
	assert.ErrorIs(t, err, cookcard.ErrStoreUnavailable)

	_, err = ledger.Reserve(ctx, "user-a", cookcard.TierFree)
	assert.ErrorIs(t, err, cookcard.ErrStoreUnavailable)

	_, err = ledger.Status(ctx, "user-a", cookcard.TierFree)
	assert.ErrorIs(t, err, cookcard.ErrStoreUnavailable)
}
