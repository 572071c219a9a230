// Package extraction implements the CookCard pipeline: cache, admission ledgers,
// the evidence ladder and the service that ties them together.
package extraction

import (
	"time"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/evidence"
)

// Flags holds every feature switch the pipeline reads. Each flag's effect is described here only.
type Flags struct {
	// FuzzyEvidence swaps the strict substring matcher for token-overlap matching in L3.
	// Off by default; strict matching is the specified behavior.
	FuzzyEvidence bool
	// FuzzyMinOverlap is the token overlap FuzzyEvidence requires.
	FuzzyMinOverlap float64
	// TranscriptEnabled allows the L2.5 transcript stage.
	TranscriptEnabled bool
	// VisionEnabled allows the L4 video stage. Budget caps still apply when on.
	VisionEnabled bool
	// PersistCards saves every assembled card through the CookCardRepository.
	PersistCards bool
}

// CostRates prices model usage. All rates are in cents.
type CostRates struct {
	TextInputPer1K    float64
	TextOutputPer1K   float64
	VisionInputPer1K  float64
	VisionOutputPer1K float64
	VisionPerMinute   float64
}

// PipelineConfig is immutable configuration injected at construction
type PipelineConfig struct {
	// Version is folded into every cache key; bumping it invalidates all cached cards.
	Version string

	CacheTTL         time.Duration
	CacheFallbackTTL time.Duration

	PreGateMinChars       int
	DescriptionMinChars   int
	CommentLimit          int
	TranscriptMaxDuration time.Duration
	// VisionMinConfidence drops vision candidates below it. Zero keeps every candidate; negative means unset.
	VisionMinConfidence float64

	MetadataTimeout   time.Duration
	CommentTimeout    time.Duration
	TranscriptTimeout time.Duration
	TextModelTimeout  time.Duration
	VisionTimeout     time.Duration

	KnownSections  []string
	VideoPlatforms []cookcard.Platform

	Tiers                    map[cookcard.Tier]cookcard.TierLimits
	GlobalVisionMinutesDaily int64

	Costs CostRates
	Flags Flags
}

// DefaultPipelineConfig returns production defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Version:                  "2024.1",
		CacheTTL:                 30 * 24 * time.Hour,
		CacheFallbackTTL:         6 * time.Hour,
		PreGateMinChars:          40,
		DescriptionMinChars:      80,
		CommentLimit:             50,
		TranscriptMaxDuration:    3 * time.Minute,
		VisionMinConfidence:      0.6,
		MetadataTimeout:          5 * time.Second,
		CommentTimeout:           5 * time.Second,
		TranscriptTimeout:        4 * time.Second,
		TextModelTimeout:         30 * time.Second,
		VisionTimeout:            90 * time.Second,
		KnownSections:            append([]string(nil), evidence.KnownSections...),
		VideoPlatforms:           []cookcard.Platform{cookcard.PlatformYouTube},
		Tiers:                    cookcard.DefaultTierLimits(),
		GlobalVisionMinutesDaily: 600,
		Costs: CostRates{
			TextInputPer1K:    0.08,
			TextOutputPer1K:   0.4,
			VisionInputPer1K:  0.3,
			VisionOutputPer1K: 1.5,
			VisionPerMinute:   2,
		},
		Flags: Flags{
			FuzzyMinOverlap:   evidence.DefaultFuzzyOverlap,
			TranscriptEnabled: true,
			VisionEnabled:     true,
			PersistCards:      true,
		},
	}
}

// withDefaults fills zero values so a partially populated config stays usable
func (c PipelineConfig) withDefaults() PipelineConfig {
	d := DefaultPipelineConfig()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheFallbackTTL <= 0 {
		c.CacheFallbackTTL = d.CacheFallbackTTL
	}
	if c.PreGateMinChars <= 0 {
		c.PreGateMinChars = d.PreGateMinChars
	}
	if c.DescriptionMinChars <= 0 {
		c.DescriptionMinChars = d.DescriptionMinChars
	}
	if c.CommentLimit <= 0 {
		c.CommentLimit = d.CommentLimit
	}
	if c.TranscriptMaxDuration <= 0 {
		c.TranscriptMaxDuration = d.TranscriptMaxDuration
	}
	if c.VisionMinConfidence < 0 {
		c.VisionMinConfidence = d.VisionMinConfidence
	}
	if c.MetadataTimeout <= 0 {
		c.MetadataTimeout = d.MetadataTimeout
	}
	if c.CommentTimeout <= 0 {
		c.CommentTimeout = d.CommentTimeout
	}
	if c.TranscriptTimeout <= 0 {
		c.TranscriptTimeout = d.TranscriptTimeout
	}
	if c.TextModelTimeout <= 0 {
		c.TextModelTimeout = d.TextModelTimeout
	}
	if c.VisionTimeout <= 0 {
		c.VisionTimeout = d.VisionTimeout
	}
	if c.KnownSections == nil {
		c.KnownSections = d.KnownSections
	}
	if c.VideoPlatforms == nil {
		c.VideoPlatforms = d.VideoPlatforms
	}
	if c.Tiers == nil {
		c.Tiers = d.Tiers
	}
	c.KnownSections = append([]string(nil), c.KnownSections...)
	c.VideoPlatforms = append([]cookcard.Platform(nil), c.VideoPlatforms...)
	tiers := make(map[cookcard.Tier]cookcard.TierLimits, len(c.Tiers))
	for k, v := range c.Tiers {
		tiers[k] = v
	}
	c.Tiers = tiers
	return c
}

// limitsFor returns the configured limits, falling back to free for unknown tiers
func (c PipelineConfig) limitsFor(tier cookcard.Tier) cookcard.TierLimits {
	if limits, ok := c.Tiers[tier]; ok {
		return limits
	}
	if limits, ok := c.Tiers[cookcard.TierFree]; ok {
		return limits
	}
	return cookcard.DefaultTierLimits()[cookcard.TierFree]
}

func (c PipelineConfig) supportsVideo(p cookcard.Platform) bool {
	for _, vp := range c.VideoPlatforms {
		if vp == p {
			return true
		}
	}
	return false
}
