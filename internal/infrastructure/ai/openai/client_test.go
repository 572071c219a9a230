package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
)

func newTestClient(t *testing.T, retries int, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.AIConfig{
		OpenAIKey:     "sk-test",
		OpenAIBaseURL: srv.URL,
		OpenAIModel:   "gpt-text",
		VisionModel:   "gpt-vision",
		MaxTokens:     256,
		MaxRetries:    retries,
	}, zap.NewNop())
}

func reply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
		Choices: []Choice{{Message: ReplyMessage{Role: "assistant", Content: content}, FinishReason: "stop"}},
		Usage:   Usage{PromptTokens: 900, CompletionTokens: 120, TotalTokens: 1020},
	})
}

func TestExtractFromText(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, `{"ingredients":[{"name":"garlic","amount":3,"unit":"cloves","evidence_phrase":"3 cloves garlic"}],"instructions":[]}`)
	})

	out, err := client.ExtractFromText(t.Context(), cookcard.SourceEvidence{Text: "3 cloves garlic", Kind: cookcard.SourceTranscript}, "Pasta")
	require.NoError(t, err)

	require.Len(t, out.Ingredients, 1)
	assert.Equal(t, "3 cloves garlic", out.Ingredients[0].EvidencePhrase)
	assert.Equal(t, "gpt-text", out.Usage.Model)
	assert.EqualValues(t, 900, out.Usage.InputTokens)
	assert.EqualValues(t, 120, out.Usage.OutputTokens)

	assert.Equal(t, "gpt-text", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].(map[string]any)["content"], "spoken transcript")
}

func TestExtractFromVideo_SendsVideoPart(t *testing.T) {
	var got ChatCompletionRequest
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		got.Model = raw.Model

		var parts []ContentPart
		require.NoError(t, json.Unmarshal(raw.Messages[1].Content, &parts))
		require.Len(t, parts, 2)
		assert.Equal(t, "video_url", parts[1].Type)
		assert.Equal(t, "https://youtube.com/watch?v=abc", parts[1].VideoURL.URL)

		reply(w, `{"ingredients":[{"name":"eggs","confidence":0.92}],"instructions":["Whisk."]}`)
	})

	out, err := client.ExtractFromVideo(t.Context(), "https://youtube.com/watch?v=abc", 95)
	require.NoError(t, err)
	assert.Equal(t, "gpt-vision", got.Model)
	require.Len(t, out.Ingredients, 1)
	assert.Equal(t, 0.92, out.Ingredients[0].Confidence)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		reply(w, `{"ingredients":[]}`)
	})

	_, err := client.ExtractFromText(t.Context(), cookcard.SourceEvidence{Text: "x", Kind: cookcard.SourceDescription}, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, 3, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	})

	_, err := client.ExtractFromText(t.Context(), cookcard.SourceEvidence{Text: "x", Kind: cookcard.SourceDescription}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.EqualValues(t, 1, calls.Load())
}

func TestMalformedReplyReportsUsage(t *testing.T) {
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		reply(w, "not json at all")
	})

	out, err := client.ExtractFromVideo(t.Context(), "https://youtube.com/watch?v=abc", 30)
	require.Error(t, err)
	assert.EqualValues(t, 900, out.Usage.InputTokens)
}
