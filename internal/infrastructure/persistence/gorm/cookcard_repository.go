// Package gorm provides GORM-based repository implementations
package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// CookCardRepository implements the card repository interface using GORM
type CookCardRepository struct {
	db *gorm.DB
}

// NewCookCardRepository creates a new card repository
func NewCookCardRepository(db *gorm.DB) *CookCardRepository {
	return &CookCardRepository{db: db}
}

var _ outbound.CookCardRepository = (*CookCardRepository)(nil)

// Save stores a card. Cards are immutable, so saving an existing ID is a no-op.
func (r *CookCardRepository) Save(ctx context.Context, card *cookcard.CookCard, requesterID, groupID string) error {
	model := CardToModel(card, requesterID, groupID)

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return fmt.Errorf("save card %s: %w", card.ID(), result.Error)
	}

	return nil
}

// FindByID finds a card by ID
func (r *CookCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*outbound.StoredCard, error) {
	var model CookCardModel

	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, cookcard.ErrNotFound
		}
		return nil, result.Error
	}

	return ModelToStoredCard(&model), nil
}

// ListByGroup finds a group's most recent cards
func (r *CookCardRepository) ListByGroup(ctx context.Context, groupID string, limit int) ([]*outbound.StoredCard, error) {
	var models []CookCardModel

	result := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	cards := make([]*outbound.StoredCard, len(models))
	for i := range models {
		cards[i] = ModelToStoredCard(&models[i])
	}

	return cards, nil
}
