package evidence

import (
	"unicode/utf8"
)

// Signal is one heuristic feature detected in candidate text
type Signal string

const (
	SignalQuantityUnit      Signal = "quantity_unit"
	SignalListStructure     Signal = "list_structure"
	SignalIngredientKeyword Signal = "ingredient_keyword"
	SignalFractionGlyph     Signal = "fraction_glyph"
	SignalFoodTerms         Signal = "food_terms"
	SignalCookingVerbs      Signal = "cooking_verbs"
)

// Strong reports whether the signal alone justifies a text model call
func (s Signal) Strong() bool {
	switch s {
	case SignalQuantityUnit, SignalListStructure, SignalIngredientKeyword, SignalFractionGlyph:
		return true
	default:
		return false
	}
}

// Pre-gate verdict reasons
const (
	ReasonPassed          = "strong_signal"
	ReasonTooShort        = "too_short"
	ReasonWeakSignalsOnly = "weak_signals_only"
	ReasonNoSignals       = "no_signals"
)

const (
	strongWeight = 3
	weakWeight   = 1

	minListLines = 2
	minFoodTerms = 2
)

// GateResult is the pre-gate verdict for one candidate text
type GateResult struct {
	Pass    bool
	Signals []Signal
	Score   int
	Reason  string
}

// PreGate decides whether candidate text is worth a text model call. It has no side effects.
type PreGate struct {
	minChars    int
	ingredients *KeywordSet
	foodTerms   *KeywordSet
	verbs       *KeywordSet
}

// NewPreGate creates a pre-gate with the given minimum length
func NewPreGate(minChars int) *PreGate {
	return &PreGate{
		minChars:    minChars,
		ingredients: NewKeywordSet(IngredientKeywords),
		foodTerms:   NewKeywordSet(FoodTerms),
		verbs:       NewKeywordSet(CookingVerbs),
	}
}

// Evaluate classifies text
func (g *PreGate) Evaluate(text string) GateResult {
	var result GateResult
	strong := false
	add := func(s Signal) {
		result.Signals = append(result.Signals, s)
		if s.Strong() {
			strong = true
			result.Score += strongWeight
		} else {
			result.Score += weakWeight
		}
	}

	if CountQuantities(text) > 0 {
		add(SignalQuantityUnit)
	}
	if _, list := countLines(text); list >= minListLines {
		add(SignalListStructure)
	}
	if g.ingredients.Contains(text) {
		add(SignalIngredientKeyword)
	}
	if HasFractionGlyph(text) {
		add(SignalFractionGlyph)
	}
	if g.foodTerms.Count(text) >= minFoodTerms {
		add(SignalFoodTerms)
	}
	if g.verbs.Contains(text) {
		add(SignalCookingVerbs)
	}

	switch {
	case strong:
		result.Pass = true
		result.Reason = ReasonPassed
	case utf8.RuneCountInString(Normalize(text)) < g.minChars:
		result.Reason = ReasonTooShort
	case len(result.Signals) > 0:
		result.Reason = ReasonWeakSignalsOnly
	default:
		result.Reason = ReasonNoSignals
	}
	return result
}
