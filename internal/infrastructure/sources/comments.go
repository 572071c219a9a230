package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/domain/evidence"
	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// youtubeMaxResults is the commentThreads page size cap
const youtubeMaxResults = 100

// CommentFetcher reads top-level comments in relevance order. Only YouTube exposes them.
type CommentFetcher struct {
	fetcher       *Fetcher
	youtubeAPIURL string
	youtubeKey    string
	logger        *zap.Logger
}

var _ outbound.CommentFetcher = (*CommentFetcher)(nil)

// NewCommentFetcher creates a comment fetcher
func NewCommentFetcher(fetcher *Fetcher, cfg config.SourcesConfig, logger *zap.Logger) *CommentFetcher {
	return &CommentFetcher{
		fetcher:       fetcher,
		youtubeAPIURL: strings.TrimRight(cfg.YouTubeAPIURL, "/"),
		youtubeKey:    cfg.YouTubeAPIKey,
		logger:        logger.Named("comments"),
	}
}

type youtubeCommentThreads struct {
	Items []struct {
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextOriginal      string `json:"textOriginal"`
					AuthorDisplayName string `json:"authorDisplayName"`
					LikeCount         int64  `json:"likeCount"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

// FetchComments implements outbound.CommentFetcher. Unsupported platforms yield no comments.
func (c *CommentFetcher) FetchComments(ctx context.Context, sourceURL string, platform cookcard.Platform, limit int) ([]evidence.Comment, error) {
	if platform != cookcard.PlatformYouTube || c.youtubeKey == "" || limit <= 0 {
		return nil, nil
	}
	id, err := videoID(sourceURL)
	if err != nil {
		return nil, err
	}
	if limit > youtubeMaxResults {
		limit = youtubeMaxResults
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("videoId", id)
	q.Set("order", "relevance")
	q.Set("textFormat", "plainText")
	q.Set("maxResults", strconv.Itoa(limit))
	q.Set("key", c.youtubeKey)

	body, err := c.fetcher.Get(ctx, c.youtubeAPIURL+"/commentThreads?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp youtubeCommentThreads
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "decode youtube comment threads")
	}

	comments := make([]evidence.Comment, 0, len(resp.Items))
	for _, item := range resp.Items {
		s := item.Snippet.TopLevelComment.Snippet
		if strings.TrimSpace(s.TextOriginal) == "" {
			continue
		}
		comments = append(comments, evidence.Comment{
			Text:   s.TextOriginal,
			Author: s.AuthorDisplayName,
			Likes:  s.LikeCount,
		})
	}

	c.logger.Debug("comments fetched", zap.String("video_id", id), zap.Int("count", len(comments)))
	return comments, nil
}
