package extraction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// Clock returns the current time; tests inject a fixed one
type Clock func() time.Time

// Keys carry a {requester} hash tag so a requester's counters share one cluster slot.
func rateKey(requesterID string, at time.Time) string {
	return fmt.Sprintf("rate:{%s}:%s", requesterID, cookcard.HourStart(at).Format("2006010215"))
}

func quotaCountKey(requesterID string, period time.Time) string {
	return fmt.Sprintf("quota:{%s}:%s:count", requesterID, period.Format("2006-01"))
}

func quotaCostKey(requesterID string, period time.Time) string {
	return fmt.Sprintf("quota:{%s}:%s:cost_cents", requesterID, period.Format("2006-01"))
}

// periodGrace keeps a month's keys readable briefly after the period rolls over
const periodGrace = 24 * time.Hour

// periodTTL is how long a period's keys live, measured from now; non-positive once the period has lapsed
func periodTTL(period, now time.Time) time.Duration {
	return period.AddDate(0, 1, 0).Sub(now) + periodGrace
}

// Reservation is a quota slot taken at admission
type Reservation struct {
	RequesterID string
	Tier        cookcard.Tier
	Period      time.Time
	Used        int64
	key         string
}

// QuotaLedger enforces the hourly rate window and the monthly extraction quota
type QuotaLedger struct {
	store outbound.CounterStore
	cfg   PipelineConfig
	now   Clock
}

// NewQuotaLedger creates a ledger over the shared counter store
func NewQuotaLedger(store outbound.CounterStore, cfg PipelineConfig, now Clock) *QuotaLedger {
	if now == nil {
		now = time.Now
	}
	cfg = cfg.withDefaults()
	return &QuotaLedger{store: store, cfg: cfg, now: now}
}

// CheckRate counts this request against the requester's current hour.
// A denied request is not counted.
func (l *QuotaLedger) CheckRate(ctx context.Context, requesterID string, tier cookcard.Tier) (cookcard.RateStatus, error) {
	limits := l.cfg.limitsFor(tier)
	now := l.now().UTC()
	windowEnd := cookcard.HourStart(now).Add(time.Hour)

	res, err := l.store.IncrementWithin(ctx, outbound.CounterIncrement{
		Key:   rateKey(requesterID, now),
		Delta: 1,
		Limit: limits.HourlyRequests,
		TTL:   windowEnd.Sub(now),
	})
	if err != nil {
		return cookcard.RateStatus{}, fmt.Errorf("%w: rate check: %v", cookcard.ErrStoreUnavailable, err)
	}

	status := cookcard.RateStatus{
		WindowKey: rateKey(requesterID, now),
		Count:     res.Values[0],
		Limit:     limits.HourlyRequests,
		ExpiresAt: windowEnd,
	}
	if !res.Allowed {
		return status, &cookcard.RateLimitedError{
			RetryAfterSeconds: retryAfter(now, windowEnd),
			CurrentCount:      res.Values[0],
			Limit:             limits.HourlyRequests,
		}
	}
	return status, nil
}

// Reserve takes one extraction from the monthly quota
func (l *QuotaLedger) Reserve(ctx context.Context, requesterID string, tier cookcard.Tier) (Reservation, error) {
	limits := l.cfg.limitsFor(tier)
	now := l.now().UTC()
	period := cookcard.MonthStart(now)
	key := quotaCountKey(requesterID, period)

	res, err := l.store.IncrementWithin(ctx, outbound.CounterIncrement{
		Key:   key,
		Delta: 1,
		Limit: limits.MonthlyExtractions,
		TTL:   periodTTL(period, now),
	})
	if err != nil {
		return Reservation{}, fmt.Errorf("%w: quota reservation: %v", cookcard.ErrStoreUnavailable, err)
	}
	if !res.Allowed {
		return Reservation{}, &cookcard.QuotaExceededError{
			Tier:  tier,
			Used:  res.Values[0],
			Limit: limits.MonthlyExtractions,
		}
	}

	return Reservation{
		RequesterID: requesterID,
		Tier:        tier,
		Period:      period,
		Used:        res.Values[0],
		key:         key,
	}, nil
}

// Release returns a reservation whose pipeline did not complete
func (l *QuotaLedger) Release(ctx context.Context, r Reservation) error {
	if r.key == "" {
		return nil
	}
	ttl := periodTTL(r.Period, l.now().UTC())
	if ttl <= 0 {
		return nil
	}
	// The TTL only applies when the reservation key is gone, so a recreated -1 still expires.
	if _, err := l.store.IncrementBy(ctx, r.key, -1, ttl); err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	return nil
}

// AddCost accumulates spend in the reservation's period
func (l *QuotaLedger) AddCost(ctx context.Context, r Reservation, cents int64) error {
	if cents <= 0 {
		return nil
	}
	ttl := periodTTL(r.Period, l.now().UTC())
	if ttl <= 0 {
		return nil
	}
	if _, err := l.store.IncrementBy(ctx, quotaCostKey(r.RequesterID, r.Period), cents, ttl); err != nil {
		return fmt.Errorf("add cost: %w", err)
	}
	return nil
}

// Status reads the monthly ledger and the current hour without mutating either
func (l *QuotaLedger) Status(ctx context.Context, requesterID string, tier cookcard.Tier) (cookcard.QuotaStatus, error) {
	limits := l.cfg.limitsFor(tier)
	now := l.now().UTC()
	period := cookcard.MonthStart(now)

	used, err := l.store.Counter(ctx, quotaCountKey(requesterID, period))
	if err != nil {
		return cookcard.QuotaStatus{}, fmt.Errorf("%w: read quota: %v", cookcard.ErrStoreUnavailable, err)
	}
	cost, err := l.store.Counter(ctx, quotaCostKey(requesterID, period))
	if err != nil {
		return cookcard.QuotaStatus{}, fmt.Errorf("%w: read cost: %v", cookcard.ErrStoreUnavailable, err)
	}
	count, err := l.store.Counter(ctx, rateKey(requesterID, now))
	if err != nil {
		return cookcard.QuotaStatus{}, fmt.Errorf("%w: read rate: %v", cookcard.ErrStoreUnavailable, err)
	}

	return cookcard.QuotaStatus{
		Quota: cookcard.QuotaRecord{
			RequesterID:           requesterID,
			Tier:                  tier,
			ExtractionsThisPeriod: used,
			CostAccumulatedCents:  cost,
			PeriodStart:           period,
			Limit:                 limits.MonthlyExtractions,
		},
		Rate: cookcard.RateStatus{
			WindowKey: rateKey(requesterID, now),
			Count:     count,
			Limit:     limits.HourlyRequests,
			ExpiresAt: cookcard.HourStart(now).Add(time.Hour),
		},
	}, nil
}

func retryAfter(now, windowEnd time.Time) int64 {
	secs := int64(math.Ceil(windowEnd.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
