package evidence

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// KeywordSet matches a closed vocabulary of words and phrases in one pass.
// Matching is whole-word and case-insensitive.
type KeywordSet struct {
	keywords []string
	labels   []string
	matcher  *ahocorasick.Matcher
}

// NewKeywordSet builds the automaton. Duplicate and empty keywords are dropped.
func NewKeywordSet(words []string) *KeywordSet {
	seen := make(map[string]struct{}, len(words))
	keywords := make([]string, 0, len(words))
	labels := make([]string, 0, len(words))
	for _, w := range words {
		padded := tokenText(w)
		if strings.TrimSpace(padded) == "" {
			continue
		}
		if _, ok := seen[padded]; ok {
			continue
		}
		seen[padded] = struct{}{}
		keywords = append(keywords, padded)
		labels = append(labels, strings.TrimSpace(w))
	}

	set := &KeywordSet{keywords: keywords, labels: labels}
	if len(keywords) > 0 {
		set.matcher = ahocorasick.NewStringMatcher(keywords)
	}
	return set
}

// Distinct returns each keyword found in text once, in vocabulary order.
func (k *KeywordSet) Distinct(text string) []string {
	if k == nil || k.matcher == nil || text == "" {
		return nil
	}
	hits := k.matcher.MatchThreadSafe([]byte(tokenText(text)))
	if len(hits) == 0 {
		return nil
	}

	found := make(map[int]struct{}, len(hits))
	for _, idx := range hits {
		if idx < len(k.keywords) {
			found[idx] = struct{}{}
		}
	}
	out := make([]string, 0, len(found))
	for idx := range k.keywords {
		if _, ok := found[idx]; ok {
			out = append(out, k.labels[idx])
		}
	}
	return out
}

// Count returns the number of distinct keywords found in text
func (k *KeywordSet) Count(text string) int {
	return len(k.Distinct(text))
}

// Contains reports whether any keyword occurs in text
func (k *KeywordSet) Contains(text string) bool {
	return k.Count(text) > 0
}

// Vocabularies used by the pre-gate and the comment scorer.
var (
	// IngredientKeywords announce an ingredient list outright.
	IngredientKeywords = []string{
		"ingredients", "ingredient list", "you'll need", "you will need",
		"what you need", "shopping list",
	}

	// RecipeKeywords score crowd comments that look like recipes.
	RecipeKeywords = []string{
		"ingredients", "recipe", "you'll need", "you will need", "what you need",
		"shopping list", "directions", "instructions", "servings", "serves",
	}

	// FoodTerms are generic food words. They only ever count as a weak signal.
	FoodTerms = []string{
		"salt", "pepper", "sugar", "flour", "butter", "oil", "olive oil", "garlic",
		"onion", "onions", "egg", "eggs", "milk", "cream", "cheese", "chicken", "beef",
		"pork", "rice", "pasta", "noodles", "tomato", "tomatoes", "potato", "potatoes",
		"lemon", "lime", "vinegar", "honey", "soy sauce", "ginger", "chili", "paprika",
		"cumin", "cinnamon", "vanilla", "yogurt", "bread", "water", "stock", "broth",
		"parsley", "cilantro", "basil", "beans", "carrot", "carrots", "mushrooms",
	}

	// CookingVerbs describe technique rather than ingredients. Weak signal.
	CookingVerbs = []string{
		"bake", "boil", "simmer", "fry", "saute", "sauté", "roast", "grill", "whisk",
		"stir", "chop", "dice", "mince", "marinate", "knead", "blend", "season",
		"preheat", "mix", "fold", "combine", "drizzle",
	}

	// SpamMarkers indicate promotional comments.
	SpamMarkers = []string{
		"follow me", "follow for more", "link in bio", "subscribe", "dm me", "giveaway",
		"promo code", "discount code", "check out my", "click the link", "http", "https",
		"www",
	}

	// KnownSections is the closed list of section headers that group ingredients.
	KnownSections = []string{
		"sauce", "garnish", "topping", "toppings", "marinade", "dressing", "filling",
		"crust", "glaze", "frosting", "icing", "batter", "dough", "assembly",
		"to serve", "for serving", "optional", "base", "seasoning", "spice mix",
	}
)
