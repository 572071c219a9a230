// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the use cases HTTP handlers and the CLI drive
package inbound

import (
	"context"

	"github.com/google/uuid"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// ExtractionService turns a share URL into a CookCard
type ExtractionService interface {
	// Extract runs cache lookup, admission and the evidence ladder.
	// It returns *cookcard.RateLimitedError or *cookcard.QuotaExceededError when admission
	// is refused and wraps cookcard.ErrStoreUnavailable when admission cannot be decided.
	Extract(ctx context.Context, req cookcard.ExtractionRequest) (*ExtractionResult, error)

	// QuotaStatus reads the requester's monthly ledger and current hourly window.
	QuotaStatus(ctx context.Context, requesterID string) (*cookcard.QuotaStatus, error)
}

// ExtractionResult is a card plus how it was served
type ExtractionResult struct {
	Card     *cookcard.CookCard `json:"card"`
	CacheHit bool               `json:"cache_hit"`
}

// CardQueryService reads persisted cards for downstream consumers
type CardQueryService interface {
	GetCard(ctx context.Context, id uuid.UUID) (*outbound.StoredCard, error)
	ListGroupCards(ctx context.Context, groupID string, limit int) ([]*outbound.StoredCard, error)
}
