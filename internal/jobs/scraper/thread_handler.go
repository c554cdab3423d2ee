package scraper

import (
	"context"
	"fmt"

	"proxyfinder/internal/blacklist"
	"proxyfinder/internal/config"
	"proxyfinder/internal/domain"
	"proxyfinder/internal/metrics"
	"proxyfinder/internal/support"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// ProxyInserter is the part of the store discovery writes to.
type ProxyInserter interface {
	InsertIfAbsent(ctx context.Context, addresses []string) (int64, error)
}

type sourceFetcher interface {
	Fetch(ctx context.Context, source domain.Source) []string
}

// Discoverer fetches every source over a bounded pool and merges the results.
type Discoverer struct {
	fetcher sourceFetcher
	threads int
}

func NewDiscoverer(fetcher *Fetcher, threads int) *Discoverer {
	return &Discoverer{
		fetcher: fetcher,
		threads: config.ClampThreads(threads),
	}
}

// Discover returns the unique valid candidates across all sources in first-seen order.
// It runs to completion even when ctx is cancelled; the fetch timeouts bound it.
func (d *Discoverer) Discover(ctx context.Context, sources []domain.Source) []string {
	ctx = context.WithoutCancel(ctx)
	results := make([][]string, len(sources))

	var g errgroup.Group
	g.SetLimit(d.threads)

	for i, source := range sources {
		g.Go(func() error {
			results[i] = d.fetchSource(ctx, source)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var unique []string
	for _, found := range results {
		for _, address := range support.FilterProxyAddresses(found) {
			if _, ok := seen[address]; ok {
				continue
			}
			seen[address] = struct{}{}
			unique = append(unique, address)
		}
	}

	unique, dropped := blacklist.Current().Filter(unique)
	if dropped > 0 {
		log.Debug("Dropped blacklisted candidates", "count", dropped)
	}

	metrics.CandidatesDiscovered.Add(float64(len(unique)))
	log.Info("Discovery finished", "sources", len(sources), "candidates", len(unique))

	return unique
}

// fetchSource shields sibling tasks from a failing fetcher.
func (d *Discoverer) fetchSource(ctx context.Context, source domain.Source) (found []string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Discovery task panicked", "url", source.URL, "panic", r)
			found = nil
		}
	}()
	return d.fetcher.Fetch(ctx, source)
}

// DiscoverAndStore runs discovery and inserts the candidates not stored yet, returning how
// many records were created.
func (d *Discoverer) DiscoverAndStore(ctx context.Context, sources []domain.Source, store ProxyInserter) (int64, error) {
	candidates := d.Discover(ctx, sources)
	if len(candidates) == 0 {
		return 0, nil
	}

	inserted, err := store.InsertIfAbsent(context.WithoutCancel(ctx), candidates)
	if err != nil {
		return 0, fmt.Errorf("scraper: store candidates: %w", err)
	}

	metrics.ProxiesInserted.Add(float64(inserted))
	log.Info(fmt.Sprintf("Found %d new proxies", inserted), "candidates", len(candidates))

	return inserted, nil
}
