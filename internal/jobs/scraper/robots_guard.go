package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	robotsCacheTTL   = time.Hour
	robotsUserAgent  = "proxyfinder"
	robotsMaxTimeout = 10 * time.Second
)

type robotsCacheEntry struct {
	data    *robotstxt.RobotsData
	fetched time.Time
}

type RobotsCheckResult struct {
	Allowed     bool
	RobotsFound bool
}

// robotsGuard answers robots.txt questions for source URLs, caching one document per host.
type robotsGuard struct {
	client  *http.Client
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]robotsCacheEntry
}

func newRobotsGuard(client *http.Client, timeout time.Duration) *robotsGuard {
	if timeout <= 0 || timeout > robotsMaxTimeout {
		timeout = robotsMaxTimeout
	}
	return &robotsGuard{
		client:  client,
		timeout: timeout,
		entries: make(map[string]robotsCacheEntry),
	}
}

// Check reports whether targetURL may be fetched. A missing or unreachable robots.txt
// allows everything.
func (g *robotsGuard) Check(ctx context.Context, targetURL string) (RobotsCheckResult, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return RobotsCheckResult{Allowed: true}, fmt.Errorf("parse robots target: %w", err)
	}
	if parsed.Host == "" {
		return RobotsCheckResult{Allowed: true}, fmt.Errorf("parse robots target: missing host in %q", targetURL)
	}

	entry, err := g.load(ctx, parsed)
	if err != nil {
		return RobotsCheckResult{Allowed: true}, err
	}
	if entry.data == nil {
		return RobotsCheckResult{Allowed: true}, nil
	}

	group := entry.data.FindGroup(robotsUserAgent)
	if group == nil {
		return RobotsCheckResult{Allowed: true, RobotsFound: true}, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}

	return RobotsCheckResult{
		Allowed:     group.Test(path),
		RobotsFound: true,
	}, nil
}

func (g *robotsGuard) load(ctx context.Context, parsed *url.URL) (robotsCacheEntry, error) {
	key := robotsOrigin(parsed)

	g.mu.Lock()
	entry, ok := g.entries[key]
	if ok && time.Since(entry.fetched) > robotsCacheTTL {
		delete(g.entries, key)
		ok = false
	}
	g.mu.Unlock()
	if ok {
		return entry, nil
	}

	entry, err := g.fetch(ctx, key+"/robots.txt")
	if err != nil {
		return entry, err
	}
	entry.fetched = time.Now()

	g.mu.Lock()
	g.entries[key] = entry
	g.mu.Unlock()

	return entry, nil
}

func (g *robotsGuard) fetch(ctx context.Context, robotsURL string) (robotsCacheEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return robotsCacheEntry{}, err
	}
	req.Header.Set("User-Agent", robotsUserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return robotsCacheEntry{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return robotsCacheEntry{}, nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return robotsCacheEntry{}, err
	}

	return robotsCacheEntry{data: data}, nil
}

func robotsOrigin(parsed *url.URL) string {
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, parsed.Host)
}
