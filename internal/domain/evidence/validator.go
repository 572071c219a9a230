package evidence

import (
	"strings"
	"sync/atomic"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
)

// Candidate is an ingredient proposed by a generative model, not yet trusted
type Candidate struct {
	Name           string   `json:"name"`
	Amount         *float64 `json:"amount,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	EvidencePhrase string   `json:"evidence_phrase,omitempty"`
	// Confidence is only reported by the vision model.
	Confidence float64 `json:"confidence,omitempty"`
}

// Matcher decides whether an evidence phrase is supported by source text.
// Both arguments are already normalized.
type Matcher interface {
	Matches(phrase, source string) bool
	Name() string
}

// StrictMatcher accepts only verbatim substrings
type StrictMatcher struct{}

func (StrictMatcher) Matches(phrase, source string) bool {
	return phrase != "" && source != "" && strings.Contains(source, phrase)
}

func (StrictMatcher) Name() string { return "strict" }

// DefaultFuzzyOverlap is used when FuzzyMatcher.MinOverlap is unset or out of range
const DefaultFuzzyOverlap = 0.8

// FuzzyMatcher accepts a phrase when enough of its tokens occur in the source.
// It is an opt-in extension point and never the default.
type FuzzyMatcher struct {
	// MinOverlap is the fraction of phrase tokens that must appear in the source.
	MinOverlap float64
}

func (m FuzzyMatcher) Matches(phrase, source string) bool {
	if phrase == "" || source == "" {
		return false
	}
	if strings.Contains(source, phrase) {
		return true
	}
	phraseTokens := tokens(phrase)
	if len(phraseTokens) < 2 {
		return false
	}
	sourceTokens := make(map[string]struct{})
	for _, t := range tokens(source) {
		sourceTokens[t] = struct{}{}
	}
	hits := 0
	for _, t := range phraseTokens {
		if _, ok := sourceTokens[t]; ok {
			hits++
		}
	}
	threshold := m.MinOverlap
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyOverlap
	}
	return float64(hits)/float64(len(phraseTokens)) >= threshold
}

func (FuzzyMatcher) Name() string { return "fuzzy" }

// Rejection records why a candidate was dropped
type Rejection struct {
	Candidate Candidate
	Reason    string
}

// Rejection reasons
const (
	RejectEmptySource   = "empty_source"
	RejectEmptyPhrase   = "empty_phrase"
	RejectEmptyName     = "empty_name"
	RejectNotInSource   = "phrase_not_in_source"
	RejectLowConfidence = "low_confidence"
)

// ValidationResult splits candidates into accepted ingredients and rejections
type ValidationResult struct {
	Accepted []cookcard.Ingredient
	Rejected []Rejection
}

// Confidence returns the mean confidence of accepted ingredients
func (r ValidationResult) Confidence() float64 {
	return MeanConfidence(r.Accepted)
}

// MeanConfidence averages ingredient confidence; an empty list scores zero
func MeanConfidence(items []cookcard.Ingredient) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, ing := range items {
		sum += ing.Confidence
	}
	return sum / float64(len(items))
}

// Confidence scoring for text-backed ingredients
const (
	baseConfidence = 0.7
	nameBonus      = 0.2
	amountBonus    = 0.1
)

// Validator drops every candidate that lacks literal support in its source text
type Validator struct {
	matcher    Matcher
	rejections atomic.Int64
}

// NewValidator creates a validator; a nil matcher means strict matching
func NewValidator(matcher Matcher) *Validator {
	if matcher == nil {
		matcher = StrictMatcher{}
	}
	return &Validator{matcher: matcher}
}

// MatcherName returns the active matching strategy
func (v *Validator) MatcherName() string { return v.matcher.Name() }

// Rejections returns the running count of rejected candidates
func (v *Validator) Rejections() int64 { return v.rejections.Load() }

// Validate checks text-model candidates against the source they were extracted from
func (v *Validator) Validate(candidates []Candidate, source string) ValidationResult {
	var result ValidationResult
	normSource := Normalize(source)

	for _, c := range candidates {
		phrase := Normalize(c.EvidencePhrase)
		switch {
		case normSource == "":
			result.Rejected = append(result.Rejected, Rejection{Candidate: c, Reason: RejectEmptySource})
		case phrase == "":
			result.Rejected = append(result.Rejected, Rejection{Candidate: c, Reason: RejectEmptyPhrase})
		case strings.TrimSpace(c.Name) == "":
			result.Rejected = append(result.Rejected, Rejection{Candidate: c, Reason: RejectEmptyName})
		case !v.matcher.Matches(phrase, normSource):
			result.Rejected = append(result.Rejected, Rejection{Candidate: c, Reason: RejectNotInSource})
		default:
			result.Accepted = append(result.Accepted, cookcard.Ingredient{
				Name:           strings.TrimSpace(c.Name),
				Amount:         c.Amount,
				Unit:           strings.TrimSpace(c.Unit),
				EvidencePhrase: c.EvidencePhrase,
				Confidence:     textConfidence(c, phrase),
			})
		}
	}

	v.rejections.Add(int64(len(result.Rejected)))
	return result
}

// ValidateVision applies the relaxed rule for vision output: a non-empty name and
// a stated confidence at or above minConfidence.
func (v *Validator) ValidateVision(candidates []Candidate, minConfidence float64) ValidationResult {
	var result ValidationResult
	for _, c := range candidates {
		switch {
		case strings.TrimSpace(c.Name) == "":
			result.Rejected = append(result.Rejected, Rejection{Candidate: c, Reason: RejectEmptyName})
		case c.Confidence < minConfidence:
			result.Rejected = append(result.Rejected, Rejection{Candidate: c, Reason: RejectLowConfidence})
		default:
			result.Accepted = append(result.Accepted, cookcard.Ingredient{
				Name:           strings.TrimSpace(c.Name),
				Amount:         c.Amount,
				Unit:           strings.TrimSpace(c.Unit),
				EvidencePhrase: c.EvidencePhrase,
				Confidence:     min(c.Confidence, 1),
			})
		}
	}

	v.rejections.Add(int64(len(result.Rejected)))
	return result
}

func textConfidence(c Candidate, normPhrase string) float64 {
	confidence := baseConfidence
	if name := Normalize(c.Name); name != "" && strings.Contains(normPhrase, name) {
		confidence += nameBonus
	}
	if c.Amount != nil && AmountAppears(*c.Amount, c.EvidencePhrase) {
		confidence += amountBonus
	}
	return min(confidence, 1)
}
