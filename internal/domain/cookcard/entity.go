// Package cookcard contains the CookCard aggregate and the request, tier and
// quota types that govern how cards are extracted.
package cookcard

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SourceKind tags where a piece of evidence came from
type SourceKind string

const (
	SourceMetadata    SourceKind = "metadata"
	SourceDescription SourceKind = "description"
	SourceComment     SourceKind = "comment"
	SourceTranscript  SourceKind = "transcript"
	// SourceVideoVision marks ingredients asserted by the vision model without a text phrase.
	SourceVideoVision SourceKind = "video_vision"
)

// Method names the ladder stage that produced the final ingredient list
type Method string

const (
	MethodText         Method = "text_extraction"
	MethodVision       Method = "video_vision"
	MethodMetadataOnly Method = "metadata_only"
)

// SourceEvidence is candidate text handed to the text extraction stage
type SourceEvidence struct {
	Text  string     `json:"text"`
	Kind  SourceKind `json:"source_kind"`
	Score int        `json:"score"`
	// Thin marks evidence below the stage's minimum length; later sources are still gathered.
	Thin bool `json:"thin,omitempty"`
}

// Ingredient is one validated line of a CookCard
type Ingredient struct {
	Name           string   `json:"name"`
	Amount         *float64 `json:"amount,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	EvidencePhrase string   `json:"evidence_phrase"`
	Group          string   `json:"group,omitempty"`
	Confidence     float64  `json:"confidence"`
}

// HasAmount reports whether a quantity was stated
func (i Ingredient) HasAmount() bool {
	return i.Amount != nil
}

// Extraction describes how a card was produced
type Extraction struct {
	Method          Method       `json:"method"`
	Sources         []SourceKind `json:"sources"`
	Confidence      float64      `json:"confidence"`
	CostCents       int64        `json:"cost_cents"`
	EvidenceSource  SourceKind   `json:"evidence_source,omitempty"`
	PipelineVersion string       `json:"pipeline_version"`
	RejectedCount   int          `json:"rejected_count"`
}

// CookCard is the structured recipe record. It is immutable once assembled.
type CookCard struct {
	id           uuid.UUID
	title        string
	creator      string
	sourceURL    string
	platform     Platform
	ingredients  []Ingredient
	instructions []string
	extraction   Extraction
	createdAt    time.Time
}

// CardParams carries everything needed to assemble a CookCard
type CardParams struct {
	ID           uuid.UUID
	Title        string
	Creator      string
	SourceURL    string
	Platform     Platform
	Ingredients  []Ingredient
	Instructions []string
	Extraction   Extraction
	CreatedAt    time.Time
}

// NewCookCard assembles a card, copying every slice so later caller mutation cannot leak in.
func NewCookCard(p CardParams) *CookCard {
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	title := p.Title
	if title == "" {
		title = p.SourceURL
	}
	extraction := p.Extraction
	extraction.Sources = dedupeSources(p.Extraction.Sources)

	return &CookCard{
		id:           id,
		title:        title,
		creator:      p.Creator,
		sourceURL:    p.SourceURL,
		platform:     p.Platform,
		ingredients:  copyIngredients(p.Ingredients),
		instructions: append([]string(nil), p.Instructions...),
		extraction:   extraction,
		createdAt:    createdAt,
	}
}

// ID returns the card's unique identifier
func (c *CookCard) ID() uuid.UUID { return c.id }

// Title returns the card title, falling back to the source URL
func (c *CookCard) Title() string { return c.title }

// Creator returns the content creator
func (c *CookCard) Creator() string { return c.creator }

// SourceURL returns the normalized source URL
func (c *CookCard) SourceURL() string { return c.sourceURL }

// Platform returns the hosting platform
func (c *CookCard) Platform() Platform { return c.platform }

// Ingredients returns a copy of the ordered ingredient list
func (c *CookCard) Ingredients() []Ingredient { return copyIngredients(c.ingredients) }

// Instructions returns a copy of the instruction steps
func (c *CookCard) Instructions() []string { return append([]string(nil), c.instructions...) }

// Extraction returns the extraction summary
func (c *CookCard) Extraction() Extraction {
	e := c.extraction
	e.Sources = append([]SourceKind(nil), c.extraction.Sources...)
	return e
}

// CreatedAt returns the assembly time
func (c *CookCard) CreatedAt() time.Time { return c.createdAt }

// IsMetadataOnly reports whether every evidence stage came up empty
func (c *CookCard) IsMetadataOnly() bool {
	return c.extraction.Method == MethodMetadataOnly
}

// AsCacheHit returns a copy billed at zero cost, as served from the cache.
func (c *CookCard) AsCacheHit() *CookCard {
	clone := NewCookCard(c.params())
	clone.extraction.CostCents = 0
	return clone
}

func (c *CookCard) params() CardParams {
	return CardParams{
		ID:           c.id,
		Title:        c.title,
		Creator:      c.creator,
		SourceURL:    c.sourceURL,
		Platform:     c.platform,
		Ingredients:  c.ingredients,
		Instructions: c.instructions,
		Extraction:   c.extraction,
		CreatedAt:    c.createdAt,
	}
}

type cardJSON struct {
	ID           uuid.UUID    `json:"id"`
	Title        string       `json:"title"`
	Creator      string       `json:"creator,omitempty"`
	SourceURL    string       `json:"source_url"`
	Platform     Platform     `json:"platform"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions []string     `json:"instructions"`
	Extraction   Extraction   `json:"extraction"`
	CreatedAt    time.Time    `json:"created_at"`
}

// MarshalJSON implements json.Marshaler
func (c *CookCard) MarshalJSON() ([]byte, error) {
	ingredients := c.ingredients
	if ingredients == nil {
		ingredients = []Ingredient{}
	}
	instructions := c.instructions
	if instructions == nil {
		instructions = []string{}
	}
	return json.Marshal(cardJSON{
		ID:           c.id,
		Title:        c.title,
		Creator:      c.creator,
		SourceURL:    c.sourceURL,
		Platform:     c.platform,
		Ingredients:  ingredients,
		Instructions: instructions,
		Extraction:   c.extraction,
		CreatedAt:    c.createdAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler; it is used when reading cached cards.
func (c *CookCard) UnmarshalJSON(data []byte) error {
	var raw cardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = *NewCookCard(CardParams(raw))
	return nil
}

func copyIngredients(in []Ingredient) []Ingredient {
	if in == nil {
		return nil
	}
	out := make([]Ingredient, len(in))
	for i, ing := range in {
		if ing.Amount != nil {
			amount := *ing.Amount
			ing.Amount = &amount
		}
		out[i] = ing
	}
	return out
}

func dedupeSources(in []SourceKind) []SourceKind {
	seen := make(map[SourceKind]struct{}, len(in))
	out := make([]SourceKind, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
