package evidence

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const fractionGlyphs = "½¼¾⅓⅔⅛⅜⅝⅞⅕⅖⅗⅘⅙⅚"

var (
	quantityPattern = regexp.MustCompile(`(?i)(?:\d+(?:[.,]\d+)?[` + fractionGlyphs + `]?(?:\s*/\s*\d+)?(?:\s*-\s*\d+)?|[` + fractionGlyphs + `])\s*` +
		`(?:tablespoons?|tbsps?|tbs|teaspoons?|tsps?|cups?|grams?|kilograms?|kg|g|milliliters?|millilitres?|ml|` +
		`liters?|litres?|l|ounces?|oz|pounds?|lbs?|cloves?|cans?|slices?|sticks?|pinch(?:es)?|dash(?:es)?|` +
		`handfuls?|pieces?|bunch(?:es)?|sprigs?|quarts?|pints?)\b`)

	bulletLinePattern   = regexp.MustCompile(`^\s*(?:[-*•·▪▫◦‣⁃►▶➤➔→✓✔✅🔸🔹]|\p{So})\s*\S`)
	numberedLinePattern = regexp.MustCompile(`^\s*\d{1,2}\s*[.)]\s*\S`)
)

// CountQuantities returns how many quantity+unit phrases appear in text
func CountQuantities(text string) int {
	return len(quantityPattern.FindAllStringIndex(text, -1))
}

// HasFractionGlyph reports whether text uses a vulgar fraction character
func HasFractionGlyph(text string) bool {
	return strings.ContainsAny(text, fractionGlyphs)
}

// IsBulletLine reports whether a line starts with a bullet glyph
func IsBulletLine(line string) bool {
	return bulletLinePattern.MatchString(line)
}

// IsListLine reports whether a line is bulleted or numbered
func IsListLine(line string) bool {
	return IsBulletLine(line) || numberedLinePattern.MatchString(line)
}

// countLines tallies bulleted lines and list (bulleted or numbered) lines
func countLines(text string) (bullets, list int) {
	for _, line := range strings.Split(text, "\n") {
		if IsBulletLine(line) {
			bullets++
			list++
			continue
		}
		if numberedLinePattern.MatchString(line) {
			list++
		}
	}
	return bullets, list
}

var glyphValues = map[string]float64{
	"½": 0.5, "¼": 0.25, "¾": 0.75, "⅓": 1.0 / 3, "⅔": 2.0 / 3,
	"⅛": 0.125, "⅜": 0.375, "⅝": 0.625, "⅞": 0.875,
}

// amountForms lists the textual forms an amount may take in source text
func amountForms(amount float64) []string {
	forms := []string{strconv.FormatFloat(amount, 'f', -1, 64)}
	whole := float64(int64(amount))
	frac := amount - whole
	for glyph, v := range glyphValues {
		if frac < v-0.001 || frac > v+0.001 {
			continue
		}
		if whole == 0 {
			forms = append(forms, glyph)
		} else {
			forms = append(forms, strconv.FormatInt(int64(whole), 10)+glyph)
		}
		num, den := fractionParts(v)
		plain := strconv.Itoa(num) + "/" + strconv.Itoa(den)
		if whole == 0 {
			forms = append(forms, plain)
		} else {
			forms = append(forms, strconv.FormatInt(int64(whole), 10)+" "+plain)
		}
	}
	if frac == 0 {
		forms = append(forms, strconv.FormatInt(int64(whole), 10))
	}
	return forms
}

func fractionParts(v float64) (int, int) {
	for _, den := range []int{2, 3, 4, 8} {
		num := v * float64(den)
		rounded := float64(int(num + 0.5))
		if num-rounded < 0.001 && rounded-num < 0.001 {
			return int(rounded), den
		}
	}
	return 0, 1
}

// AmountAppears reports whether any textual form of amount occurs in text
func AmountAppears(amount float64, text string) bool {
	if text == "" {
		return false
	}
	raw := strings.ToLower(text)
	norm := Normalize(text)
	for _, form := range amountForms(amount) {
		if strings.Contains(raw, form) || strings.Contains(norm, Normalize(form)) {
			return true
		}
	}
	return false
}

// ParseAmount reads a written quantity such as "2", "1.5", "1/2", "1 1/2", "½" or "1½"
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	for strings.Contains(s, " /") || strings.Contains(s, "/ ") {
		s = strings.ReplaceAll(strings.ReplaceAll(s, " /", "/"), "/ ", "/")
	}
	if s == "" {
		return 0, false
	}
	for glyph, v := range glyphValues {
		if !strings.HasSuffix(s, glyph) {
			continue
		}
		whole := strings.TrimSpace(strings.TrimSuffix(s, glyph))
		if whole == "" {
			return v, true
		}
		w, err := strconv.ParseFloat(whole, 64)
		if err != nil || w < 0 || math.IsInf(w, 0) || math.IsNaN(w) {
			return 0, false
		}
		return w + v, true
	}

	var whole float64
	if i := strings.IndexByte(s, ' '); i > 0 && strings.Contains(s[i:], "/") {
		w, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, false
		}
		whole, s = w, strings.TrimSpace(s[i+1:])
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, false
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil || d == 0 {
			return 0, false
		}
		v := whole + n/d
		if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return v, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
