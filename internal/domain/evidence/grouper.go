package evidence

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
)

var forThePattern = regexp.MustCompile(`^for (?:the |a |an |your )?\p{L}+(?: \p{L}+){0,3}$`)

const minCapsLetters = 4

// Grouper turns structural headers into group labels on the ingredients that follow them
type Grouper struct {
	known map[string]struct{}
}

// NewGrouper creates a grouper over a closed list of section names
func NewGrouper(knownSections []string) *Grouper {
	known := make(map[string]struct{}, len(knownSections))
	for _, s := range knownSections {
		if n := Normalize(s); n != "" {
			known[n] = struct{}{}
		}
	}
	return &Grouper{known: known}
}

// Group removes header items and attaches their label to subsequent ingredients
// until the next header. Input order is preserved.
func (g *Grouper) Group(items []cookcard.Ingredient) []cookcard.Ingredient {
	out := make([]cookcard.Ingredient, 0, len(items))
	current := ""
	for _, item := range items {
		if label, ok := g.HeaderLabel(item); ok {
			current = label
			continue
		}
		if current != "" {
			item.Group = current
		}
		out = append(out, item)
	}
	return out
}

// HeaderLabel reports whether an item is a section header and returns its label
func (g *Grouper) HeaderLabel(item cookcard.Ingredient) (string, bool) {
	if item.HasAmount() {
		return "", false
	}
	text := strings.TrimSpace(item.Name)
	if text == "" {
		text = strings.TrimSpace(item.EvidencePhrase)
	}
	if text == "" {
		return "", false
	}

	label := strings.TrimSpace(strings.TrimRight(text, ":："))
	if label == "" {
		return "", false
	}

	switch {
	case strings.HasSuffix(text, ":") || strings.HasSuffix(text, "："):
		return label, true
	case forThePattern.MatchString(Normalize(label)):
		return label, true
	case g.isKnown(label):
		return label, true
	case isAllCaps(label):
		return label, true
	default:
		return "", false
	}
}

func (g *Grouper) isKnown(label string) bool {
	_, ok := g.known[Normalize(label)]
	return ok
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			return false
		case unicode.IsLetter(r):
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= minCapsLetters
}
