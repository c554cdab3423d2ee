package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"proxyfinder/internal/config"
	"proxyfinder/internal/metrics"
	"proxyfinder/internal/support"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

var ErrNoProbeEndpoints = errors.New("checker: no reachable probe endpoints")

// Rotation is the set of probe endpoints usable for one verification pass. It is never
// mutated after PrepareRotation returns, so workers share it by value.
type Rotation struct {
	endpoints []string
}

func NewRotation(endpoints ...string) Rotation {
	return Rotation{endpoints: append([]string(nil), endpoints...)}
}

func (r Rotation) Len() int {
	return len(r.endpoints)
}

func (r Rotation) Endpoints() []string {
	return append([]string(nil), r.endpoints...)
}

// Pick returns a random endpoint, or "" for an empty rotation.
func (r Rotation) Pick() string {
	if len(r.endpoints) == 0 {
		return ""
	}
	return r.endpoints[rand.IntN(len(r.endpoints))]
}

// directClient never routes through a proxy, not even one from the environment.
func directClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	return &http.Client{Transport: transport}
}

// PrepareRotation probes every endpoint directly and keeps the reachable ones, in their
// configured order.
func PrepareRotation(ctx context.Context, client *http.Client, urls []string, timeout time.Duration) Rotation {
	if client == nil {
		client = directClient()
	}

	reachable := make([]bool, len(urls))

	var g errgroup.Group
	for i, endpoint := range urls {
		g.Go(func() error {
			if config.IsWebsiteBlocked(endpoint) {
				log.Warn("Probe endpoint is blocked, pruning", "url", endpoint)
				return nil
			}
			if err := probeDirect(ctx, client, endpoint, timeout); err != nil {
				log.Warn("Probe endpoint unreachable, pruning", "url", endpoint, "error", ExtractErrorCause(err))
				return nil
			}
			reachable[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var endpoints []string
	for i, ok := range reachable {
		if ok {
			endpoints = append(endpoints, urls[i])
		}
	}

	metrics.ProbeEndpoints.Set(float64(len(endpoints)))
	log.Debug("Probe rotation ready", "configured", len(urls), "reachable", len(endpoints))

	return Rotation{endpoints: endpoints}
}

func probeDirect(ctx context.Context, client *http.Client, endpoint string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", support.RandomUserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}
