package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// MetadataFetcher reads title, creator, duration and description.
// YouTube goes through the Data API when a key is configured; every other page is read from its OpenGraph tags.
type MetadataFetcher struct {
	fetcher       *Fetcher
	youtubeAPIURL string
	youtubeKey    string
	logger        *zap.Logger
}

var _ outbound.MetadataFetcher = (*MetadataFetcher)(nil)

// NewMetadataFetcher creates a metadata fetcher
func NewMetadataFetcher(fetcher *Fetcher, cfg config.SourcesConfig, logger *zap.Logger) *MetadataFetcher {
	return &MetadataFetcher{
		fetcher:       fetcher,
		youtubeAPIURL: strings.TrimRight(cfg.YouTubeAPIURL, "/"),
		youtubeKey:    cfg.YouTubeAPIKey,
		logger:        logger.Named("metadata"),
	}
}

// FetchMetadata implements outbound.MetadataFetcher
func (m *MetadataFetcher) FetchMetadata(ctx context.Context, sourceURL string, platform cookcard.Platform) (outbound.MediaMetadata, error) {
	if platform == cookcard.PlatformYouTube && m.youtubeKey != "" {
		meta, err := m.fetchYouTube(ctx, sourceURL)
		if err == nil {
			return meta, nil
		}
		m.logger.Warn("youtube api metadata failed, falling back to page tags", zap.Error(err))
	}
	return m.fetchOpenGraph(ctx, sourceURL)
}

type youtubeVideos struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (m *MetadataFetcher) fetchYouTube(ctx context.Context, sourceURL string) (outbound.MediaMetadata, error) {
	id, err := videoID(sourceURL)
	if err != nil {
		return outbound.MediaMetadata{}, err
	}

	q := url.Values{}
	q.Set("part", "snippet,contentDetails")
	q.Set("id", id)
	q.Set("key", m.youtubeKey)
	body, err := m.fetcher.Get(ctx, m.youtubeAPIURL+"/videos?"+q.Encode())
	if err != nil {
		return outbound.MediaMetadata{}, err
	}

	var resp youtubeVideos
	if err := json.Unmarshal(body, &resp); err != nil {
		return outbound.MediaMetadata{}, eris.Wrap(err, "decode youtube videos")
	}
	if len(resp.Items) == 0 {
		return outbound.MediaMetadata{}, eris.Errorf("youtube video %s not found", id)
	}

	item := resp.Items[0]
	meta := outbound.MediaMetadata{
		Title:           item.Snippet.Title,
		Creator:         item.Snippet.ChannelTitle,
		Description:     item.Snippet.Description,
		DurationSeconds: parseISODuration(item.ContentDetails.Duration),
	}
	for _, size := range []string{"high", "medium", "default"} {
		if thumb, ok := item.Snippet.Thumbnails[size]; ok && thumb.URL != "" {
			meta.ThumbnailURL = thumb.URL
			break
		}
	}
	return meta, nil
}

func (m *MetadataFetcher) fetchOpenGraph(ctx context.Context, sourceURL string) (outbound.MediaMetadata, error) {
	body, err := m.fetcher.Get(ctx, sourceURL)
	if err != nil {
		return outbound.MediaMetadata{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return outbound.MediaMetadata{}, eris.Wrap(err, "parse html")
	}

	meta := outbound.MediaMetadata{
		Title:        firstContent(doc, "meta[property='og:title']", "meta[name='twitter:title']"),
		Description:  firstContent(doc, "meta[property='og:description']", "meta[name='description']"),
		ThumbnailURL: firstContent(doc, "meta[property='og:image']"),
		Creator: firstContent(doc,
			"link[itemprop='name']",
			"meta[name='author']",
			"meta[property='og:video:director']",
			"meta[property='og:site_name']",
		),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if v := firstContent(doc, "meta[property='video:duration']", "meta[property='og:video:duration']"); v != "" {
		meta.DurationSeconds, _ = strconv.Atoi(v)
	}
	if meta.DurationSeconds == 0 {
		meta.DurationSeconds = parseISODuration(firstContent(doc, "meta[itemprop='duration']"))
	}
	return meta, nil
}

// firstContent returns the first non-empty content attribute among the selectors
func firstContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if v, ok := node.Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts durations such as PT1M30S to seconds; unparseable input is zero
func parseISODuration(s string) int {
	m := isoDuration.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0
	}
	total := 0
	for i, mult := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * mult
	}
	return total
}
