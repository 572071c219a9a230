package cookcard

import (
	"time"

	"github.com/google/uuid"
)

// Domain Events - emitted fire-and-forget to analytics

// Event type names
const (
	EventExtractionCompleted = "extraction.completed"
	EventCacheHit            = "extraction.cache_hit"
	EventRateLimited         = "extraction.rate_limited"
	EventQuotaExceeded       = "extraction.quota_exceeded"
	EventEvidenceRejected    = "evidence.rejected"
	EventStageFinished       = "ladder.stage_finished"
	EventBudgetDenied        = "budget.denied"
	EventExtractionAborted   = "extraction.aborted"
)

// ExtractionCompletedEvent is raised when the ladder finishes for a non-cached request
type ExtractionCompletedEvent struct {
	ExtractionID    uuid.UUID
	CardID          uuid.UUID
	RequesterID     string
	GroupID         string
	Platform        Platform
	Method          Method
	EvidenceSource  SourceKind
	IngredientCount int
	RejectedCount   int
	CostCents       int64
	Confidence      float64
	Duration        time.Duration
	At              time.Time
}

func (e ExtractionCompletedEvent) EventName() string     { return EventExtractionCompleted }
func (e ExtractionCompletedEvent) OccurredAt() time.Time { return e.At }
func (e ExtractionCompletedEvent) Fields() map[string]any {
	return map[string]any{
		"extraction_id":    e.ExtractionID.String(),
		"card_id":          e.CardID.String(),
		"requester_id":     e.RequesterID,
		"group_id":         e.GroupID,
		"platform":         string(e.Platform),
		"method":           string(e.Method),
		"evidence_source":  string(e.EvidenceSource),
		"ingredient_count": e.IngredientCount,
		"rejected_count":   e.RejectedCount,
		"cost_cents":       e.CostCents,
		"confidence":       e.Confidence,
		"duration_ms":      e.Duration.Milliseconds(),
	}
}

// CacheHitEvent is raised when a cached card is served
type CacheHitEvent struct {
	RequesterID string
	CardID      uuid.UUID
	At          time.Time
}

func (e CacheHitEvent) EventName() string     { return EventCacheHit }
func (e CacheHitEvent) OccurredAt() time.Time { return e.At }
func (e CacheHitEvent) Fields() map[string]any {
	return map[string]any{"requester_id": e.RequesterID, "card_id": e.CardID.String()}
}

// RateLimitedEvent is raised when the hourly window rejects a request
type RateLimitedEvent struct {
	RequesterID       string
	Tier              Tier
	RetryAfterSeconds int64
	Limit             int64
	At                time.Time
}

func (e RateLimitedEvent) EventName() string     { return EventRateLimited }
func (e RateLimitedEvent) OccurredAt() time.Time { return e.At }
func (e RateLimitedEvent) Fields() map[string]any {
	return map[string]any{
		"requester_id":        e.RequesterID,
		"tier":                string(e.Tier),
		"retry_after_seconds": e.RetryAfterSeconds,
		"limit":               e.Limit,
	}
}

// QuotaExceededEvent is raised when the requester degrades to link-only
type QuotaExceededEvent struct {
	RequesterID string
	Tier        Tier
	Used        int64
	Limit       int64
	At          time.Time
}

func (e QuotaExceededEvent) EventName() string     { return EventQuotaExceeded }
func (e QuotaExceededEvent) OccurredAt() time.Time { return e.At }
func (e QuotaExceededEvent) Fields() map[string]any {
	return map[string]any{
		"requester_id": e.RequesterID,
		"tier":         string(e.Tier),
		"used":         e.Used,
		"limit":        e.Limit,
	}
}

// EvidenceRejectedEvent counts candidates dropped for lack of textual support
type EvidenceRejectedEvent struct {
	ExtractionID uuid.UUID
	Source       SourceKind
	Rejected     int
	Names        []string
	At           time.Time
}

func (e EvidenceRejectedEvent) EventName() string     { return EventEvidenceRejected }
func (e EvidenceRejectedEvent) OccurredAt() time.Time { return e.At }
func (e EvidenceRejectedEvent) Fields() map[string]any {
	return map[string]any{
		"extraction_id": e.ExtractionID.String(),
		"source_kind":   string(e.Source),
		"rejected":      e.Rejected,
		"names":         e.Names,
	}
}

// StageFinishedEvent records the outcome of one ladder stage
type StageFinishedEvent struct {
	ExtractionID uuid.UUID
	Stage        string
	Outcome      string
	Reason       string
	Duration     time.Duration
	At           time.Time
}

func (e StageFinishedEvent) EventName() string     { return EventStageFinished }
func (e StageFinishedEvent) OccurredAt() time.Time { return e.At }
func (e StageFinishedEvent) Fields() map[string]any {
	return map[string]any{
		"extraction_id": e.ExtractionID.String(),
		"stage":         e.Stage,
		"outcome":       e.Outcome,
		"reason":        e.Reason,
		"duration_ms":   e.Duration.Milliseconds(),
	}
}

// BudgetDeniedEvent is raised when the vision stage is refused a reservation
type BudgetDeniedEvent struct {
	ExtractionID uuid.UUID
	RequesterID  string
	Minutes      int64
	Reason       string
	At           time.Time
}

func (e BudgetDeniedEvent) EventName() string     { return EventBudgetDenied }
func (e BudgetDeniedEvent) OccurredAt() time.Time { return e.At }
func (e BudgetDeniedEvent) Fields() map[string]any {
	return map[string]any{
		"extraction_id": e.ExtractionID.String(),
		"requester_id":  e.RequesterID,
		"minutes":       e.Minutes,
		"reason":        e.Reason,
	}
}

// ExtractionAbortedEvent is raised when a request is cancelled mid-ladder
type ExtractionAbortedEvent struct {
	ExtractionID uuid.UUID
	RequesterID  string
	Cause        string
	At           time.Time
}

func (e ExtractionAbortedEvent) EventName() string     { return EventExtractionAborted }
func (e ExtractionAbortedEvent) OccurredAt() time.Time { return e.At }
func (e ExtractionAbortedEvent) Fields() map[string]any {
	return map[string]any{
		"extraction_id": e.ExtractionID.String(),
		"requester_id":  e.RequesterID,
		"cause":         e.Cause,
	}
}
