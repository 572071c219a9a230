package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// DefaultTimedTextURL serves YouTube caption tracks as XML
const DefaultTimedTextURL = "https://www.youtube.com/api/timedtext"

// TranscriptFetcher returns caption text. A configured transcript service is used for every platform;
// without one, YouTube caption tracks are read directly.
type TranscriptFetcher struct {
	fetcher      *Fetcher
	serviceURL   string
	timedTextURL string
	languages    []string
	logger       *zap.Logger
}

var _ outbound.TranscriptFetcher = (*TranscriptFetcher)(nil)

// NewTranscriptFetcher creates a transcript fetcher
func NewTranscriptFetcher(fetcher *Fetcher, cfg config.SourcesConfig, logger *zap.Logger) *TranscriptFetcher {
	return &TranscriptFetcher{
		fetcher:      fetcher,
		serviceURL:   cfg.TranscriptURL,
		timedTextURL: DefaultTimedTextURL,
		languages:    []string{"en", "en-US", "en-GB"},
		logger:       logger.Named("transcript"),
	}
}

// FetchTranscript implements outbound.TranscriptFetcher
func (t *TranscriptFetcher) FetchTranscript(ctx context.Context, sourceURL string, platform cookcard.Platform) (string, error) {
	if t.serviceURL != "" {
		return t.fetchFromService(ctx, sourceURL)
	}
	if platform != cookcard.PlatformYouTube {
		return "", nil
	}
	return t.fetchTimedText(ctx, sourceURL)
}

type transcriptServiceResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
}

func (t *TranscriptFetcher) fetchFromService(ctx context.Context, sourceURL string) (string, error) {
	q := url.Values{}
	q.Set("url", sourceURL)
	body, err := t.fetcher.Get(ctx, t.serviceURL+"?"+q.Encode())
	if err != nil {
		return "", err
	}

	var resp transcriptServiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", eris.Wrap(err, "decode transcript service response")
	}
	if resp.Text != "" {
		return strings.TrimSpace(resp.Text), nil
	}
	parts := make([]string, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		if s.Text = strings.TrimSpace(s.Text); s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (t *TranscriptFetcher) fetchTimedText(ctx context.Context, sourceURL string) (string, error) {
	id, err := videoID(sourceURL)
	if err != nil {
		return "", err
	}

	for _, lang := range t.languages {
		q := url.Values{}
		q.Set("v", id)
		q.Set("lang", lang)
		body, err := t.fetcher.Get(ctx, t.timedTextURL+"?"+q.Encode())
		if err != nil {
			return "", err
		}
		text, err := parseTimedText(body)
		if err != nil {
			return "", err
		}
		if text != "" {
			t.logger.Debug("transcript found", zap.String("video_id", id), zap.String("lang", lang))
			return text, nil
		}
	}
	return "", nil
}

// parseTimedText joins the <text> cues of a caption track, one per line
func parseTimedText(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "parse caption track")
	}

	var lines []string
	doc.Find("text").Each(func(_ int, s *goquery.Selection) {
		if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})
	return strings.Join(lines, "\n"), nil
}
