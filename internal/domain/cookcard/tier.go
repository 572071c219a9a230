package cookcard

import "strings"

// Tier is the subscription level that sizes a requester's limits
type Tier string

const (
	TierFree     Tier = "free"
	TierPlus     Tier = "plus"
	TierPro      Tier = "pro"
	TierInternal Tier = "internal"
)

// Unlimited is the sentinel limit for uncapped counters.
const Unlimited int64 = -1

// TierLimits sizes every counter for one tier. A negative limit is unlimited.
type TierLimits struct {
	MonthlyExtractions  int64 `mapstructure:"monthly_extractions" json:"monthly_extractions"`
	HourlyRequests      int64 `mapstructure:"hourly_requests" json:"hourly_requests"`
	VisionMinutesPerDay int64 `mapstructure:"vision_minutes_per_day" json:"vision_minutes_per_day"`
}

// DefaultTierLimits returns the stock limits for every known tier
func DefaultTierLimits() map[Tier]TierLimits {
	return map[Tier]TierLimits{
		TierFree:     {MonthlyExtractions: 10, HourlyRequests: 2, VisionMinutesPerDay: 0},
		TierPlus:     {MonthlyExtractions: 60, HourlyRequests: 10, VisionMinutesPerDay: 5},
		TierPro:      {MonthlyExtractions: 300, HourlyRequests: 30, VisionMinutesPerDay: 15},
		TierInternal: {MonthlyExtractions: Unlimited, HourlyRequests: 120, VisionMinutesPerDay: 60},
	}
}

// ParseTier maps a stored tier name onto a Tier
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFree, TierPlus, TierPro, TierInternal:
		return t, nil
	default:
		return TierFree, ErrUnknownTier
	}
}

// IsUnlimited reports whether limit disables its counter
func IsUnlimited(limit int64) bool {
	return limit < 0
}
