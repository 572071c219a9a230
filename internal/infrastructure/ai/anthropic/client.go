// Package anthropic implements the text extraction model on the Anthropic Messages API
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/infrastructure/ai"
	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// TextModel extracts evidence-backed ingredient candidates from text
type TextModel struct {
	client      sdk.Client
	model       string
	maxTokens   int64
	temperature float64
	logger      *zap.Logger
}

var _ outbound.TextModel = (*TextModel)(nil)

// NewTextModel builds the client from config. Extra options are appended after the configured ones.
func NewTextModel(cfg config.AIConfig, logger *zap.Logger, opts ...option.RequestOption) *TextModel {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.AnthropicKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &TextModel{
		client:      sdk.NewClient(append(base, opts...)...),
		model:       cfg.AnthropicModel,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		logger:      logger.Named("anthropic"),
	}
}

// ExtractFromText asks the model for ingredients quoted from the given source text
func (m *TextModel) ExtractFromText(ctx context.Context, source cookcard.SourceEvidence, title string) (outbound.ModelExtraction, error) {
	msg, err := m.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(m.model),
		MaxTokens:   m.maxTokens,
		Temperature: sdk.Float(m.temperature),
		System:      []sdk.TextBlockParam{{Text: ai.TextSystemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(ai.BuildTextPrompt(source, title))),
		},
	})
	if err != nil {
		return outbound.ModelExtraction{}, eris.Wrap(err, "anthropic: create message")
	}

	usage := outbound.TokenUsage{
		Model:        string(msg.Model),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}
	if usage.Model == "" {
		usage.Model = m.model
	}

	m.logger.Debug("text extraction completed",
		zap.String("model", usage.Model),
		zap.String("source_kind", string(source.Kind)),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
	)

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	candidates, instructions, err := ai.ParseExtraction(reply.String())
	if err != nil {
		// Tokens were spent either way; the caller still charges them.
		return outbound.ModelExtraction{Usage: usage}, eris.Wrap(err, "anthropic: parse reply")
	}

	return outbound.ModelExtraction{
		Ingredients:  candidates,
		Instructions: instructions,
		Usage:        usage,
	}, nil
}
