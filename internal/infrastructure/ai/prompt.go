// Package ai holds the prompts and response parsing shared by the model adapters
package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/evidence"
)

// ErrMalformedResponse is returned when a model reply holds no usable JSON object
var ErrMalformedResponse = eris.New("model response is not a JSON extraction")

// TextSystemPrompt instructs the text model to quote its evidence
const TextSystemPrompt = `You extract recipe ingredients from social media text.

Rules:
- Only list ingredients that are written in the text. Never infer or add ingredients.
- For every ingredient, "evidence_phrase" must be copied verbatim from the text.
- Section headers such as "For the sauce:" are listed as their own item with no amount.
- "amount" is a number or omitted; "unit" is omitted when none is written.
- "instructions" holds the steps written in the text, in order. Leave it empty if there are none.

Respond with ONLY a JSON object:
{"ingredients":[{"name":"flour","amount":2,"unit":"cups","evidence_phrase":"2 cups flour"}],"instructions":["Mix everything."]}`

// VisionSystemPrompt instructs the vision model to state its confidence
const VisionSystemPrompt = `You watch a cooking video and list the ingredients that are shown or named.

Rules:
- Give every ingredient a "confidence" between 0 and 1 that it is really used.
- "amount" and "unit" are only given when they are shown or said.
- "instructions" holds the steps as they happen in the video.

Respond with ONLY a JSON object:
{"ingredients":[{"name":"eggs","amount":3,"confidence":0.9}],"instructions":["Whisk the eggs."]}`

var sourceLabels = map[cookcard.SourceKind]string{
	cookcard.SourceDescription: "video description",
	cookcard.SourceComment:     "viewer comment",
	cookcard.SourceTranscript:  "spoken transcript",
}

// BuildTextPrompt renders the user message for one piece of candidate text
func BuildTextPrompt(src cookcard.SourceEvidence, title string) string {
	label, ok := sourceLabels[src.Kind]
	if !ok {
		label = string(src.Kind)
	}

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "Video title: %s\n", title)
	}
	fmt.Fprintf(&b, "Source: %s\n\n", label)
	b.WriteString("<text>\n")
	b.WriteString(src.Text)
	b.WriteString("\n</text>")
	return b.String()
}

// BuildVisionPrompt renders the user message for a video
func BuildVisionPrompt(sourceURL string, durationSeconds int) string {
	return fmt.Sprintf("List the ingredients in this %d second cooking video: %s", durationSeconds, sourceURL)
}

type extractionPayload struct {
	Ingredients  []json.RawMessage `json:"ingredients"`
	Instructions []string          `json:"instructions"`
}

// wireCandidate accepts amounts written as numbers or as strings like "1/2"
type wireCandidate struct {
	Name           string          `json:"name"`
	Amount         json.RawMessage `json:"amount"`
	Unit           string          `json:"unit"`
	EvidencePhrase string          `json:"evidence_phrase"`
	Confidence     float64         `json:"confidence"`
}

func decodeCandidate(raw json.RawMessage) (evidence.Candidate, error) {
	var w wireCandidate
	if err := json.Unmarshal(raw, &w); err != nil {
		return evidence.Candidate{}, err
	}
	c := evidence.Candidate{
		Name:           w.Name,
		Unit:           w.Unit,
		EvidencePhrase: w.EvidencePhrase,
		Confidence:     w.Confidence,
	}
	amount, err := decodeAmount(w.Amount)
	if err != nil {
		return evidence.Candidate{}, err
	}
	c.Amount = amount
	return c, nil
}

// decodeAmount returns nil for a missing, null or unreadable written amount
func decodeAmount(raw json.RawMessage) (*float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, eris.Wrapf(err, "amount %s", raw)
	}
	if v, ok := evidence.ParseAmount(s); ok {
		return &v, nil
	}
	return nil, nil
}

// ParseExtraction decodes the JSON object in a model reply, tolerating code fences and chatter around it.
// Ingredients that fail to decode are dropped one by one.
func ParseExtraction(reply string) ([]evidence.Candidate, []string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return nil, nil, ErrMalformedResponse
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(reply[start:end+1]), &payload); err != nil {
		return nil, nil, eris.Wrap(ErrMalformedResponse, err.Error())
	}

	candidates := make([]evidence.Candidate, 0, len(payload.Ingredients))
	for _, raw := range payload.Ingredients {
		c, err := decodeCandidate(raw)
		if err != nil {
			continue
		}
		if strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.EvidencePhrase) == "" {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, payload.Instructions, nil
}
