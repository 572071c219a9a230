// Package sources fetches platform metadata, comments and transcripts for share URLs
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
)

// ErrUpstreamStatus is wrapped when a platform answers with a non-200 status
var ErrUpstreamStatus = eris.New("unexpected upstream status")

// Fetcher is a polite HTTP client: one token bucket per host and a capped body size
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	rps       rate.Limit
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	logger   *zap.Logger
}

// NewFetcher creates a fetcher from the source settings
func NewFetcher(cfg config.SourcesConfig, logger *zap.Logger) *Fetcher {
	rps := rate.Limit(cfg.RequestsPerSec)
	if cfg.RequestsPerSec <= 0 {
		rps = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		rps:       rps,
		burst:     burst,
		limiters:  make(map[string]*rate.Limiter),
		logger:    logger.Named("sources"),
	}
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.rps, f.burst)
		f.limiters[host] = l
	}
	return l
}

// Get waits for the host's limiter, then returns the body of a 200 response
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "parse %s", rawURL)
	}
	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept-Language", "en")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch %s", u.Host)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, eris.Wrap(ErrUpstreamStatus, fmt.Sprintf("%s answered %d", u.Host, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}

	f.logger.Debug("fetched", zap.String("host", u.Host), zap.Int("bytes", len(body)))
	return body, nil
}

// videoID returns the v= parameter of a normalized YouTube watch URL
func videoID(sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", eris.Wrap(err, "parse source url")
	}
	id := u.Query().Get("v")
	if id == "" {
		return "", eris.Errorf("no video id in %s", sourceURL)
	}
	return id, nil
}
