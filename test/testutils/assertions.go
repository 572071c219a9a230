// Package testutils provides custom assertions and testing utilities
package testutils

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/evidence"
)

// AssertGrounded checks that every text-sourced ingredient quotes the source
func AssertGrounded(t *testing.T, card *cookcard.CookCard, source string) {
	t.Helper()
	require.NotNil(t, card)
	if card.Extraction().Method != cookcard.MethodText {
		return
	}
	normSource := evidence.Normalize(source)
	for _, ing := range card.Ingredients() {
		assert.NotEmpty(t, ing.EvidencePhrase, "ingredient %q has no evidence phrase", ing.Name)
		assert.True(t, strings.Contains(normSource, evidence.Normalize(ing.EvidencePhrase)),
			"evidence %q for %q does not appear in the source", ing.EvidencePhrase, ing.Name)
	}
}

// AssertIngredientNames checks the card's ingredient names in order
func AssertIngredientNames(t *testing.T, card *cookcard.CookCard, want ...string) {
	t.Helper()
	require.NotNil(t, card)
	got := make([]string, 0, len(card.Ingredients()))
	for _, ing := range card.Ingredients() {
		got = append(got, ing.Name)
	}
	assert.Equal(t, want, got)
}

// DecodeJSON decodes a recorded response body into v
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}
