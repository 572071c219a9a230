package extraction

import (
	"math"

	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// costMeter accumulates fractional cents over one ladder run
type costMeter struct {
	rates CostRates
	cents float64
}

func (m *costMeter) addText(u outbound.TokenUsage) {
	m.cents += float64(u.InputTokens)/1000*m.rates.TextInputPer1K +
		float64(u.OutputTokens)/1000*m.rates.TextOutputPer1K
}

func (m *costMeter) addVision(u outbound.TokenUsage, minutes int64) {
	m.cents += float64(u.InputTokens)/1000*m.rates.VisionInputPer1K +
		float64(u.OutputTokens)/1000*m.rates.VisionOutputPer1K +
		float64(minutes)*m.rates.VisionPerMinute
}

// Total is the ceiling of the summed stage costs
func (m *costMeter) Total() int64 {
	if m.cents <= 0 {
		return 0
	}
	return int64(math.Ceil(m.cents - 1e-9))
}
