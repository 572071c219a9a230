package cookcard

import "time"

// QuotaRecord is the requester's monthly extraction ledger as read from the store
type QuotaRecord struct {
	RequesterID           string    `json:"requester_id"`
	Tier                  Tier      `json:"tier"`
	ExtractionsThisPeriod int64     `json:"extractions_this_period"`
	CostAccumulatedCents  int64     `json:"cost_accumulated_cents"`
	PeriodStart           time.Time `json:"period_start"`
	Limit                 int64     `json:"limit"`
}

// Remaining returns extractions left this period, or Unlimited
func (q QuotaRecord) Remaining() int64 {
	if IsUnlimited(q.Limit) {
		return Unlimited
	}
	if left := q.Limit - q.ExtractionsThisPeriod; left > 0 {
		return left
	}
	return 0
}

// RateStatus is the current hourly window for a requester
type RateStatus struct {
	WindowKey string    `json:"window_key"`
	Count     int64     `json:"count"`
	Limit     int64     `json:"limit"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VisionUsage is the requester's vision-model minutes reserved today
type VisionUsage struct {
	Day          time.Time `json:"day"`
	MinutesToday int64     `json:"minutes_today"`
	DailyLimit   int64     `json:"daily_limit"`
}

// Remaining returns vision minutes left today
func (v VisionUsage) Remaining() int64 {
	if left := v.DailyLimit - v.MinutesToday; left > 0 {
		return left
	}
	return 0
}

// QuotaStatus pairs the monthly ledger with the hourly window and today's vision minutes
type QuotaStatus struct {
	Quota  QuotaRecord `json:"quota"`
	Rate   RateStatus  `json:"rate"`
	Vision VisionUsage `json:"vision"`
}

// MonthStart returns the first instant of t's calendar month in UTC
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// HourStart returns the start of t's UTC hour
func HourStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// DayStart returns UTC midnight of t's day
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
