package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// Both budget keys share the {day} hash tag so the two-key reservation stays in one slot.
func budgetGlobalKey(day time.Time) string {
	return fmt.Sprintf("budget:{%s}:global", day.Format("20060102"))
}

func budgetUserKey(day time.Time, requesterID string) string {
	return fmt.Sprintf("budget:{%s}:user:%s", day.Format("20060102"), requesterID)
}

// MediaMinutes rounds a duration up to whole minutes
func MediaMinutes(durationSeconds int) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	return int64((durationSeconds + 59) / 60)
}

// BudgetLedger caps vision-model minutes per day, globally and per requester.
// Reservations are never refunded, even when the call fails.
type BudgetLedger struct {
	store     outbound.CounterStore
	cfg       PipelineConfig
	globalCap int64
	now       Clock
}

// NewBudgetLedger creates the ledger. A negative global cap is unlimited; zero closes the stage.
func NewBudgetLedger(store outbound.CounterStore, cfg PipelineConfig, now Clock) *BudgetLedger {
	if now == nil {
		now = time.Now
	}
	cfg = cfg.withDefaults()
	return &BudgetLedger{store: store, cfg: cfg, globalCap: cfg.GlobalVisionMinutesDaily, now: now}
}

// Reserve checks both caps and increments both counters in one atomic operation
func (b *BudgetLedger) Reserve(ctx context.Context, requesterID string, tier cookcard.Tier, durationSeconds int) (int64, error) {
	minutes := MediaMinutes(durationSeconds)
	if minutes == 0 {
		return 0, cookcard.ErrUnknownDuration
	}
	userCap := b.cfg.limitsFor(tier).VisionMinutesPerDay
	if userCap == 0 || b.globalCap == 0 {
		return 0, cookcard.ErrBudgetExceeded
	}

	now := b.now().UTC()
	day := cookcard.DayStart(now)
	ttl := day.Add(24*time.Hour).Sub(now) + time.Hour

	res, err := b.store.IncrementWithin(ctx,
		outbound.CounterIncrement{Key: budgetGlobalKey(day), Delta: minutes, Limit: b.globalCap, TTL: ttl},
		outbound.CounterIncrement{Key: budgetUserKey(day, requesterID), Delta: minutes, Limit: userCap, TTL: ttl},
	)
	if err != nil {
		// Fail closed: an unreadable ledger never authorizes spend.
		return 0, fmt.Errorf("%w: %v", cookcard.ErrBudgetExceeded, err)
	}
	if !res.Allowed {
		return 0, cookcard.ErrBudgetExceeded
	}
	return minutes, nil
}

// Usage returns today's reserved minutes for the global and requester scopes
func (b *BudgetLedger) Usage(ctx context.Context, requesterID string) (global, user int64, err error) {
	day := cookcard.DayStart(b.now())
	if global, err = b.store.Counter(ctx, budgetGlobalKey(day)); err != nil {
		return 0, 0, fmt.Errorf("read global budget: %w", err)
	}
	if user, err = b.store.Counter(ctx, budgetUserKey(day, requesterID)); err != nil {
		return 0, 0, fmt.Errorf("read user budget: %w", err)
	}
	return global, user, nil
}

// Status reports the requester's vision minutes for today against their tier cap
func (b *BudgetLedger) Status(ctx context.Context, requesterID string, tier cookcard.Tier) (cookcard.VisionUsage, error) {
	_, used, err := b.Usage(ctx, requesterID)
	if err != nil {
		return cookcard.VisionUsage{}, fmt.Errorf("%w: %v", cookcard.ErrStoreUnavailable, err)
	}
	return cookcard.VisionUsage{
		Day:          cookcard.DayStart(b.now()),
		MinutesToday: used,
		DailyLimit:   b.cfg.limitsFor(tier).VisionMinutesPerDay,
	}, nil
}
