package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// TierRepository resolves requester tiers from the requester_tiers table
type TierRepository struct {
	db *gorm.DB
}

// NewTierRepository creates a new tier repository
func NewTierRepository(db *gorm.DB) *TierRepository {
	return &TierRepository{db: db}
}

var _ outbound.TierRepository = (*TierRepository)(nil)

// ResolveTier returns the requester's tier. Unknown requesters are on the free tier.
func (r *TierRepository) ResolveTier(ctx context.Context, requesterID string) (cookcard.Tier, error) {
	var model RequesterTierModel

	result := r.db.WithContext(ctx).First(&model, "requester_id = ?", requesterID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return cookcard.TierFree, nil
		}
		return cookcard.TierFree, result.Error
	}

	return cookcard.ParseTier(model.Tier)
}

// AssignTier upserts a requester's tier
func (r *TierRepository) AssignTier(ctx context.Context, requesterID string, tier cookcard.Tier) error {
	if _, err := cookcard.ParseTier(string(tier)); err != nil {
		return err
	}
	now := time.Now().UTC()
	model := RequesterTierModel{
		RequesterID: requesterID,
		Tier:        string(tier),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "requester_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tier", "updated_at"}),
		}).
		Create(&model).Error
}
