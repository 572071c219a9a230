// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/evidence"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// Pantry items the factories draw from; every one is a single lowercase word or phrase
var pantry = []string{
	"olive oil", "garlic", "onion", "butter", "flour", "sugar", "salt", "black pepper",
	"chicken breast", "tomato", "basil", "parmesan", "lemon juice", "soy sauce", "rice",
	"eggs", "milk", "paprika", "cumin", "ginger",
}

var units = []string{"tbsp", "tsp", "cup", "g", "ml", "oz", "cloves"}

// Factory builds seeded, reproducible test data
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory creates a factory with a fixed seed
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// RequesterID returns a random requester id
func (f *Factory) RequesterID() string {
	return "user-" + f.faker.Username()
}

// YouTubeURL returns a share URL for a random video id
func (f *Factory) YouTubeURL() string {
	return "https://youtu.be/" + f.faker.LetterN(11)
}

// Request builds an accepted extraction request
func (f *Factory) Request(rawURL string) cookcard.ExtractionRequest {
	req, err := cookcard.NewExtractionRequest(rawURL, f.RequesterID(), "", false)
	if err != nil {
		panic(fmt.Sprintf("factory request for %q: %v", rawURL, err))
	}
	return req
}

// IngredientLine is one amount/unit/name triple rendered into recipe text
type IngredientLine struct {
	Name   string
	Amount float64
	Unit   string
}

// Text renders the line the way creators write it
func (l IngredientLine) Text() string {
	return fmt.Sprintf("%g %s %s", l.Amount, l.Unit, l.Name)
}

// Lines picks n distinct pantry ingredients with amounts
func (f *Factory) Lines(n int) []IngredientLine {
	if n > len(pantry) {
		n = len(pantry)
	}
	picked := make([]string, len(pantry))
	copy(picked, pantry)
	f.faker.ShuffleStrings(picked)

	lines := make([]IngredientLine, n)
	for i := 0; i < n; i++ {
		lines[i] = IngredientLine{
			Name:   picked[i],
			Amount: float64(f.faker.Number(1, 4)),
			Unit:   units[f.faker.Number(0, len(units)-1)],
		}
	}
	return lines
}

// RecipeText renders lines as a description with a header and bullets
func (f *Factory) RecipeText(lines []IngredientLine) string {
	var b strings.Builder
	b.WriteString(f.faker.Sentence(6))
	b.WriteString("\n\nIngredients:\n")
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l.Text())
		b.WriteString("\n")
	}
	b.WriteString("\nMix everything and bake for 20 minutes.")
	return b.String()
}

// Candidates turns lines into model output whose evidence phrases appear verbatim in the text
func (f *Factory) Candidates(lines []IngredientLine) []evidence.Candidate {
	out := make([]evidence.Candidate, len(lines))
	for i, l := range lines {
		amount := l.Amount
		out[i] = evidence.Candidate{
			Name:           l.Name,
			Amount:         &amount,
			Unit:           l.Unit,
			EvidencePhrase: l.Text(),
		}
	}
	return out
}

// Metadata builds platform metadata around a description
func (f *Factory) Metadata(description string, durationSeconds int) outbound.MediaMetadata {
	return outbound.MediaMetadata{
		Title:           f.faker.Phrase(),
		Creator:         f.faker.Username(),
		Description:     description,
		DurationSeconds: durationSeconds,
		ThumbnailURL:    f.faker.URL(),
	}
}

// Extraction wraps candidates as a model response with token usage
func (f *Factory) Extraction(candidates []evidence.Candidate) outbound.ModelExtraction {
	return outbound.ModelExtraction{
		Ingredients:  candidates,
		Instructions: []string{f.faker.Sentence(8), f.faker.Sentence(6)},
		Usage: outbound.TokenUsage{
			Model:        "test-model",
			InputTokens:  int64(f.faker.Number(500, 2000)),
			OutputTokens: int64(f.faker.Number(100, 400)),
		},
	}
}

// Card builds an assembled text-extraction card
func (f *Factory) Card(sourceURL string, lines []IngredientLine) *cookcard.CookCard {
	ingredients := make([]cookcard.Ingredient, len(lines))
	for i, l := range lines {
		amount := l.Amount
		ingredients[i] = cookcard.Ingredient{
			Name:           l.Name,
			Amount:         &amount,
			Unit:           l.Unit,
			EvidencePhrase: l.Text(),
			Confidence:     0.9,
		}
	}
	return cookcard.NewCookCard(cookcard.CardParams{
		ID:          uuid.New(),
		Title:       f.faker.Phrase(),
		Creator:     f.faker.Username(),
		SourceURL:   sourceURL,
		Platform:    cookcard.DetectPlatform(sourceURL),
		Ingredients: ingredients,
		Instructions: []string{
			f.faker.Sentence(8),
		},
		Extraction: cookcard.Extraction{
			Method:          cookcard.MethodText,
			Sources:         []cookcard.SourceKind{cookcard.SourceMetadata, cookcard.SourceDescription},
			Confidence:      0.9,
			CostCents:       1,
			EvidenceSource:  cookcard.SourceDescription,
			PipelineVersion: "test",
		},
	})
}
