package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"proxyfinder/internal/config"
	"proxyfinder/internal/domain"
	"proxyfinder/internal/metrics"
	"proxyfinder/internal/support"

	"github.com/charmbracelet/log"
)

const maxSourceBodyBytes = 8 << 20

// Fetcher downloads source pages and hands them to the matching parser. One client is
// shared by every fetch.
type Fetcher struct {
	client        *http.Client
	timeout       time.Duration
	respectRobots bool
	robots        *robotsGuard
}

type FetcherOption func(*Fetcher)

func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithRobots makes the fetcher skip sources whose robots.txt disallows them.
func WithRobots(enabled bool) FetcherOption {
	return func(f *Fetcher) {
		f.respectRobots = enabled
	}
}

func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{},
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.respectRobots {
		f.robots = newRobotsGuard(f.client, f.timeout)
	}
	return f
}

// NewFetcherFromConfig builds a fetcher from the scraper settings.
func NewFetcherFromConfig(cfg config.Config) *Fetcher {
	return NewFetcher(cfg.ScraperTimeout(), WithRobots(cfg.Scraper.RespectRobots))
}

// Fetch returns the raw candidates of one source. It never fails: every problem is logged
// against the source URL and yields an empty list.
func (f *Fetcher) Fetch(ctx context.Context, source domain.Source) (proxies []string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Source fetch panicked", "url", source.URL, "panic", r)
			metrics.SourceFetches.WithLabelValues("failed").Inc()
			proxies = nil
		}
	}()

	if config.IsWebsiteBlocked(source.URL) {
		log.Warn("Source is blocked, skipping", "url", source.URL)
		metrics.SourceFetches.WithLabelValues("skipped").Inc()
		return nil
	}

	if f.robots != nil {
		result, err := f.robots.Check(ctx, source.URL)
		if err != nil {
			log.Warn("robots.txt check failed", "url", source.URL, "error", err)
		}
		if result.RobotsFound && !result.Allowed {
			log.Info("robots.txt disallows scraping, skipping", "url", source.URL)
			metrics.SourceFetches.WithLabelValues("skipped").Inc()
			return nil
		}
	}

	body, err := f.download(ctx, source)
	if err != nil {
		log.Warn("Source fetch failed", "url", source.URL, "error", err)
		metrics.SourceFetches.WithLabelValues("failed").Inc()
		return nil
	}

	proxies = ParseProxies(body, source.ParserType)
	metrics.SourceFetches.WithLabelValues("ok").Inc()
	log.Debug("Source parsed", "url", source.URL, "candidates", len(proxies))

	return proxies
}

func (f *Fetcher) download(ctx context.Context, source domain.Source) (string, error) {
	target, err := sourceURL(source)
	if err != nil {
		return "", err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header = support.RandomIdentityHeaders()
	for key, value := range source.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(data), nil
}

// sourceURL merges the source's query parameters into its URL.
func sourceURL(source domain.Source) (string, error) {
	parsed, err := url.Parse(source.URL)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	if len(source.Params) == 0 {
		return parsed.String(), nil
	}

	query := parsed.Query()
	for key, value := range source.Params {
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}
