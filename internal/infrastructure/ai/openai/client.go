// Package openai provides text and video extraction over any OpenAI-compatible chat completions API
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/infrastructure/ai"
	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// Client talks to /chat/completions. It serves as both the text and the vision model.
type Client struct {
	apiKey      string
	baseURL     string
	textModel   string
	visionModel string
	maxTokens   int
	temperature float64
	maxRetries  int
	client      *http.Client
	logger      *zap.Logger
}

var (
	_ outbound.TextModel   = (*Client)(nil)
	_ outbound.VisionModel = (*Client)(nil)
)

// NewClient creates a new client from the AI settings
func NewClient(cfg config.AIConfig, logger *zap.Logger) *Client {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &Client{
		apiKey:      cfg.OpenAIKey,
		baseURL:     cfg.OpenAIBaseURL,
		textModel:   cfg.OpenAIModel,
		visionModel: cfg.VisionModel,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
		logger: logger.Named("openai"),
	}
}

// ChatCompletionRequest is the request body for /chat/completions
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat asks the server for a JSON object reply
type ResponseFormat struct {
	Type string `json:"type"`
}

// Message is a request message. Content is a string or a list of ContentPart.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multi-part message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	VideoURL *MediaURL `json:"video_url,omitempty"`
}

// MediaURL points the model at remote media
type MediaURL struct {
	URL string `json:"url"`
}

type ChatCompletionResponse struct {
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Message      ReplyMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

type ReplyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ExtractFromText asks the text model for ingredients quoted from the given source text
func (c *Client) ExtractFromText(ctx context.Context, source cookcard.SourceEvidence, title string) (outbound.ModelExtraction, error) {
	messages := []Message{
		{Role: "system", Content: ai.TextSystemPrompt},
		{Role: "user", Content: ai.BuildTextPrompt(source, title)},
	}
	return c.extract(ctx, c.textModel, messages)
}

// ExtractFromVideo sends the video URL to the vision model
func (c *Client) ExtractFromVideo(ctx context.Context, sourceURL string, durationSeconds int) (outbound.ModelExtraction, error) {
	messages := []Message{
		{Role: "system", Content: ai.VisionSystemPrompt},
		{Role: "user", Content: []ContentPart{
			{Type: "text", Text: ai.BuildVisionPrompt(sourceURL, durationSeconds)},
			{Type: "video_url", VideoURL: &MediaURL{URL: sourceURL}},
		}},
	}
	return c.extract(ctx, c.visionModel, messages)
}

func (c *Client) extract(ctx context.Context, model string, messages []Message) (outbound.ModelExtraction, error) {
	resp, err := c.callChat(ctx, ChatCompletionRequest{
		Model:          model,
		Messages:       messages,
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return outbound.ModelExtraction{}, err
	}

	usage := outbound.TokenUsage{
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if usage.Model == "" {
		usage.Model = model
	}

	if len(resp.Choices) == 0 {
		return outbound.ModelExtraction{Usage: usage}, eris.New("openai: no response choices returned")
	}

	candidates, instructions, err := ai.ParseExtraction(resp.Choices[0].Message.Content)
	if err != nil {
		return outbound.ModelExtraction{Usage: usage}, eris.Wrap(err, "openai: parse reply")
	}

	return outbound.ModelExtraction{
		Ingredients:  candidates,
		Instructions: instructions,
		Usage:        usage,
	}, nil
}

// callChat posts the request, retrying rate limits and server errors with a linear backoff
func (c *Client) callChat(ctx context.Context, reqBody ChatCompletionRequest) (*ChatCompletionResponse, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "openai: marshal request")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "openai: retry cancelled")
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		resp, retry, err := c.doChat(ctx, jsonBody)
		if err == nil {
			c.logger.Debug("chat completion succeeded",
				zap.String("model", reqBody.Model),
				zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
				zap.Int("attempt", attempt+1),
			)
			return resp, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		c.logger.Warn("chat completion failed, retrying", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return nil, lastErr
}

func (c *Client) doChat(ctx context.Context, jsonBody []byte) (*ChatCompletionResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, false, eris.Wrap(err, "openai: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, eris.Wrap(err, "openai: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, eris.Wrap(err, "openai: read response")
	}

	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, eris.New(fmt.Sprintf("openai: API error %d: %s", resp.StatusCode, truncate(body, 512)))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, false, eris.Wrap(err, "openai: unmarshal response")
	}
	return &chatResp, false, nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
