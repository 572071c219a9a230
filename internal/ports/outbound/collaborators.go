package outbound

import (
	"context"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/evidence"
)

// MediaMetadata is the cheap platform metadata gathered first for every URL
type MediaMetadata struct {
	Title       string `json:"title"`
	Creator     string `json:"creator"`
	Description string `json:"description"`
	// DurationSeconds is zero when the platform does not report it.
	DurationSeconds int    `json:"duration_seconds"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
}

// MetadataFetcher returns title, creator, duration and description for a URL
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, sourceURL string, platform cookcard.Platform) (MediaMetadata, error)
}

// CommentFetcher returns comments ordered by relevance
type CommentFetcher interface {
	FetchComments(ctx context.Context, sourceURL string, platform cookcard.Platform, limit int) ([]evidence.Comment, error)
}

// TranscriptFetcher returns plain transcript text, or empty when none exists
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, sourceURL string, platform cookcard.Platform) (string, error)
}

// TokenUsage is what a model call consumed
type TokenUsage struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// ModelExtraction is the structured output of a generative model call
type ModelExtraction struct {
	Ingredients  []evidence.Candidate `json:"ingredients"`
	Instructions []string             `json:"instructions"`
	Usage        TokenUsage           `json:"-"`
}

// TextModel extracts ingredient candidates, each with a literal evidence phrase
type TextModel interface {
	ExtractFromText(ctx context.Context, source cookcard.SourceEvidence, title string) (ModelExtraction, error)
}

// VisionModel extracts ingredient candidates, each with a stated confidence, from the video itself
type VisionModel interface {
	ExtractFromVideo(ctx context.Context, sourceURL string, durationSeconds int) (ModelExtraction, error)
}

// TelemetryEmitter ships analytics events. Emit must never block the caller.
type TelemetryEmitter interface {
	Emit(ctx context.Context, eventType string, fields map[string]any)
}
