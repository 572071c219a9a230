// Package evidence holds the pure text heuristics of the extraction ladder:
// the quality pre-gate, the comment scorer, the evidence validator and the
// section grouper.
package evidence

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC, case folding and whitespace collapsing.
// Both sides of every evidence comparison go through it.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// cases.Caser is stateful, so one is built per call.
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// tokenText reduces text to space-delimited letter/digit runs with a leading and
// trailing space, so padded keywords only match on whole words.
func tokenText(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range Normalize(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// tokens splits normalized text into letter/digit words
func tokens(s string) []string {
	return strings.Fields(tokenText(s))
}
