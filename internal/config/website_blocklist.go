package config

import (
	"net/url"
	"strings"
	"sync/atomic"
)

// websiteBlocklist holds normalized hostnames that must never be contacted, neither as a
// source nor as a probe endpoint.
var websiteBlocklist atomic.Value

func init() {
	websiteBlocklist.Store(map[string]struct{}{})
}

func updateWebsiteBlocklist(entries []string) {
	set := make(map[string]struct{}, len(entries))
	for _, raw := range entries {
		if host := normalizeHostname(raw); host != "" {
			set[host] = struct{}{}
		}
	}
	websiteBlocklist.Store(set)
}

// IsWebsiteBlocked reports whether the URL's host, or any parent domain of it, is blacklisted.
func IsWebsiteBlocked(rawURL string) bool {
	blocked := websiteBlocklist.Load().(map[string]struct{})
	if len(blocked) == 0 {
		return false
	}

	host := normalizeHostname(rawURL)
	for host != "" {
		if _, ok := blocked[host]; ok {
			return true
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			return false
		}
		host = host[dot+1:]
	}
	return false
}

func normalizeHostname(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Allow bare hostnames by prefixing a scheme for URL parsing.
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}

	return strings.Trim(strings.ToLower(parsed.Hostname()), ".")
}
