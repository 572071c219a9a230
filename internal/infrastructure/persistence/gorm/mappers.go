// Package gorm provides mapping between domain entities and GORM models
package gorm

import (
	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// CardToModel converts a domain card to a GORM model
func CardToModel(card *cookcard.CookCard, requesterID, groupID string) *CookCardModel {
	ext := card.Extraction()
	sources := make(StringSlice, len(ext.Sources))
	for i, s := range ext.Sources {
		sources[i] = string(s)
	}

	return &CookCardModel{
		ID:              card.ID(),
		Title:           card.Title(),
		Creator:         card.Creator(),
		SourceURL:       card.SourceURL(),
		Platform:        string(card.Platform()),
		RequesterID:     requesterID,
		GroupID:         groupID,
		Ingredients:     IngredientList(card.Ingredients()),
		Instructions:    StringSlice(card.Instructions()),
		Method:          string(ext.Method),
		Sources:         sources,
		EvidenceSource:  string(ext.EvidenceSource),
		Confidence:      ext.Confidence,
		CostCents:       ext.CostCents,
		RejectedCount:   ext.RejectedCount,
		PipelineVersion: ext.PipelineVersion,
		CreatedAt:       card.CreatedAt(),
	}
}

// ModelToStoredCard converts a GORM model back to a stored card
func ModelToStoredCard(model *CookCardModel) *outbound.StoredCard {
	sources := make([]cookcard.SourceKind, len(model.Sources))
	for i, s := range model.Sources {
		sources[i] = cookcard.SourceKind(s)
	}

	card := cookcard.NewCookCard(cookcard.CardParams{
		ID:           model.ID,
		Title:        model.Title,
		Creator:      model.Creator,
		SourceURL:    model.SourceURL,
		Platform:     cookcard.Platform(model.Platform),
		Ingredients:  model.Ingredients,
		Instructions: model.Instructions,
		Extraction: cookcard.Extraction{
			Method:          cookcard.Method(model.Method),
			Sources:         sources,
			Confidence:      model.Confidence,
			CostCents:       model.CostCents,
			EvidenceSource:  cookcard.SourceKind(model.EvidenceSource),
			PipelineVersion: model.PipelineVersion,
			RejectedCount:   model.RejectedCount,
		},
		CreatedAt: model.CreatedAt.UTC(),
	})

	return &outbound.StoredCard{
		Card:        card,
		RequesterID: model.RequesterID,
		GroupID:     model.GroupID,
	}
}
