package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreGate_Evaluate(t *testing.T) {
	gate := NewPreGate(40)

	tests := []struct {
		name       string
		text       string
		wantPass   bool
		wantReason string
		wantSignal Signal
	}{
		{
			name:       "ShortHashtagDescription_FailsTooShort",
			text:       "Check out my food! #yum",
			wantPass:   false,
			wantReason: ReasonTooShort,
		},
		{
			name:       "QuantityAndUnit_Passes",
			text:       "Add 2 tbsp olive oil to the pan",
			wantPass:   true,
			wantReason: ReasonPassed,
			wantSignal: SignalQuantityUnit,
		},
		{
			name:       "IngredientKeyword_Passes",
			text:       "You'll need: eggs and flour",
			wantPass:   true,
			wantReason: ReasonPassed,
			wantSignal: SignalIngredientKeyword,
		},
		{
			name:       "FractionGlyph_Passes",
			text:       "½ onion",
			wantPass:   true,
			wantReason: ReasonPassed,
			wantSignal: SignalFractionGlyph,
		},
		{
			name:       "BulletedList_Passes",
			text:       "- eggs\n- flour\n- milk",
			wantPass:   true,
			wantReason: ReasonPassed,
			wantSignal: SignalListStructure,
		},
		{
			name:       "LongWeakText_FailsWeakSignalsOnly",
			text:       "I love garlic and butter so much, this is my favourite thing to bake every single weekend",
			wantPass:   false,
			wantReason: ReasonWeakSignalsOnly,
			wantSignal: SignalFoodTerms,
		},
		{
			name:       "LongUnrelatedText_FailsNoSignals",
			text:       "Today we went to the beach and watched the sunset with friends and family",
			wantPass:   false,
			wantReason: ReasonNoSignals,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			result := gate.Evaluate(tt.text)

			// Assert
			assert.Equal(t, tt.wantPass, result.Pass)
			assert.Equal(t, tt.wantReason, result.Reason)
			if tt.wantSignal != "" {
				assert.Contains(t, result.Signals, tt.wantSignal)
			}
		})
	}
}

func TestPreGate_ScoreWeighsStrongSignals(t *testing.T) {
	gate := NewPreGate(40)

	strong := gate.Evaluate("Ingredients:\n- 2 cups flour\n- 1 tsp salt")
	weak := gate.Evaluate("garlic butter sauce that I bake and simmer for hours on a slow sunday")

	assert.Greater(t, strong.Score, weak.Score)
	assert.True(t, strong.Pass)
	assert.False(t, weak.Pass)
}

func TestKeywordSet_WholeWordsOnly(t *testing.T) {
	set := NewKeywordSet([]string{"oil", "you'll need"})

	assert.Equal(t, []string{"oil"}, set.Distinct("Olive OIL, then more oil"))
	assert.Empty(t, set.Distinct("bring it to a boil"))
	assert.Equal(t, []string{"you'll need"}, set.Distinct("YOU’LL NEED a pan"))
}

func TestCountQuantities(t *testing.T) {
	assert.Equal(t, 3, CountQuantities("2 tbsp oil, 1½ cups rice and 300g chicken"))
	assert.Equal(t, 0, CountQuantities("2 garlic cloves? no, 2 eggs"))
	assert.Equal(t, 1, CountQuantities("½ cup milk"))
}

func TestAmountAppears(t *testing.T) {
	assert.True(t, AmountAppears(2, "2 tbsp olive oil"))
	assert.True(t, AmountAppears(0.5, "½ cup milk"))
	assert.True(t, AmountAppears(0.5, "1/2 cup milk"))
	assert.True(t, AmountAppears(1.5, "1 1/2 cups flour"))
	assert.False(t, AmountAppears(3, "2 tbsp olive oil"))
}
