package blacklist

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"proxyfinder/internal/config"
	"proxyfinder/internal/support"
)

const (
	maxResponseBytes   = 4 << 20
	maxParallelSources = 4
)

var (
	ipRegex = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?\b`)

	current     atomic.Pointer[Set]
	refreshOnce singleflight.Group
)

type ipRange struct {
	start uint32
	end   uint32
}

// Set is an immutable collection of blocked IPv4 addresses and CIDR ranges.
type Set struct {
	ips    map[string]struct{}
	ranges []ipRange
}

// Parse extracts every IPv4 address and CIDR block found in payload.
func Parse(payload []byte) *Set {
	ips, ranges := parseIPs(payload)
	return newSet(ips, ranges)
}

// NewSet builds a set from configured entries such as "1.2.3.4" or "10.0.0.0/8".
func NewSet(entries []string) *Set {
	return Parse([]byte(strings.Join(entries, "\n")))
}

func newSet(ips map[string]struct{}, ranges []ipRange) *Set {
	if ips == nil {
		ips = make(map[string]struct{})
	}
	return &Set{ips: ips, ranges: mergeRanges(ranges)}
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ips) + len(s.ranges)
}

// Contains reports whether the host of address (ip or ip:port) is blocked.
func (s *Set) Contains(address string) bool {
	if s.Len() == 0 {
		return false
	}

	host := support.ProxyHost(address)
	if host == "" {
		host = address
	}
	ip := normalizeIPv4(host)
	if ip == "" {
		return false
	}

	if _, ok := s.ips[ip]; ok {
		return true
	}
	return inRange(ip, s.ranges)
}

// Filter drops blocked addresses, keeping the order of the rest.
func (s *Set) Filter(addresses []string) ([]string, int) {
	if s.Len() == 0 {
		return addresses, 0
	}

	kept := make([]string, 0, len(addresses))
	for _, address := range addresses {
		if s.Contains(address) {
			continue
		}
		kept = append(kept, address)
	}
	return kept, len(addresses) - len(kept)
}

func (s *Set) union(other *Set) *Set {
	ips := make(map[string]struct{}, len(s.ips)+len(other.ips))
	for ip := range s.ips {
		ips[ip] = struct{}{}
	}
	for ip := range other.ips {
		ips[ip] = struct{}{}
	}
	ranges := make([]ipRange, 0, len(s.ranges)+len(other.ranges))
	ranges = append(ranges, s.ranges...)
	ranges = append(ranges, other.ranges...)
	return newSet(ips, ranges)
}

// Current returns the active blacklist. It is empty until Refresh succeeds.
func Current() *Set {
	if set := current.Load(); set != nil {
		return set
	}
	return newSet(nil, nil)
}

// Refresh rebuilds the active blacklist from cfg.IPBlacklist plus every
// cfg.IPBlacklistSources download. Sources that fail are logged and skipped.
func Refresh(ctx context.Context, client *http.Client, cfg config.Config) (*Set, error) {
	result, err, _ := refreshOnce.Do("refresh", func() (interface{}, error) {
		return doRefresh(ctx, client, cfg)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Set), nil
}

func doRefresh(ctx context.Context, client *http.Client, cfg config.Config) (*Set, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.ScraperTimeout()}
	}

	set := NewSet(cfg.IPBlacklist)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(maxParallelSources)

	for _, source := range cfg.IPBlacklistSources {
		g.Go(func() error {
			fetched, err := fetchBlacklist(ctx, client, source)
			if err != nil {
				log.Warn("Blacklist source failed", "source", source, "error", err)
				return nil
			}

			mu.Lock()
			set = set.union(fetched)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current.Store(set)
	log.Debug("Blacklist refreshed", "entries", set.Len(), "sources", len(cfg.IPBlacklistSources))
	return set, nil
}

func fetchBlacklist(ctx context.Context, client *http.Client, source string) (*Set, error) {
	if config.IsWebsiteBlocked(source) {
		return nil, fmt.Errorf("blacklist source blocked: %s", source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return Parse(content), nil
}

func parseIPs(payload []byte) (map[string]struct{}, []ipRange) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 1024), 1024*1024)

	seen := make(map[string]struct{})
	var ranges []ipRange

	for scanner.Scan() {
		line := scanner.Bytes()
		if i := bytes.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, match := range ipRegex.FindAll(line, -1) {
			r, ip, ok := parseCIDROrIP(string(match))
			if !ok {
				continue
			}
			if ip != "" {
				seen[ip] = struct{}{}
				continue
			}
			ranges = append(ranges, r)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Warn("Blacklist scanner warning", "error", err)
	}

	return seen, ranges
}

func parseCIDROrIP(raw string) (ipRange, string, bool) {
	if !strings.Contains(raw, "/") {
		ip := normalizeIPv4(raw)
		return ipRange{}, ip, ip != ""
	}

	_, ipnet, err := net.ParseCIDR(raw)
	if err != nil || ipnet == nil {
		return ipRange{}, "", false
	}

	base := ipnet.IP.To4()
	if base == nil {
		return ipRange{}, "", false
	}

	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return ipRange{}, "", false
	}

	start := ipToUint32(base.Mask(ipnet.Mask))
	hostCount := uint64(1) << uint(bits-ones)
	return ipRange{start: start, end: uint32(uint64(start) + hostCount - 1)}, "", true
}

// mergeRanges sorts ranges and folds overlapping or adjacent ones so inRange can binary search.
func mergeRanges(ranges []ipRange) []ipRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := append([]ipRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	merged := sorted[:1]
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if uint64(r.start) <= uint64(last.end)+1 {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func inRange(ip string, ranges []ipRange) bool {
	if len(ranges) == 0 {
		return false
	}

	u := ipToUint32(net.ParseIP(ip))

	lo, hi := 0, len(ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		if u < ranges[mid].start {
			hi = mid
			continue
		}
		if u > ranges[mid].end {
			lo = mid + 1
			continue
		}
		return true
	}
	return false
}

func normalizeIPv4(raw string) string {
	parsed := net.ParseIP(strings.TrimSpace(raw))
	if parsed == nil {
		return ""
	}
	v4 := parsed.To4()
	if v4 == nil {
		return ""
	}
	return v4.String()
}

func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	if ip == nil {
		return 0
	}
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}
