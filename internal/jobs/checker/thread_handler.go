package checker

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"proxyfinder/internal/config"
	"proxyfinder/internal/database"
	"proxyfinder/internal/domain"
	"proxyfinder/internal/metrics"

	"github.com/charmbracelet/log"
)

// BatchSize bounds how much verification work an abrupt exit can lose.
const BatchSize = 10

// ProxyUpdater is the part of the store the coordinator writes to.
type ProxyUpdater interface {
	BulkUpdate(ctx context.Context, records []*domain.Proxy, fields ...string) error
}

type recordVerifier interface {
	Verify(ctx context.Context, record *domain.Proxy, rotation Rotation) Outcome
}

type Summary struct {
	Processed   int
	Working     int
	Failed      int
	Cancelled   int
	Flushes     int
	FlushErrors int

	totalLatency float64
}

// AverageLatency is the mean latency of the proxies found working in this pass.
func (s Summary) AverageLatency() float64 {
	if s.Working == 0 {
		return 0
	}
	return s.totalLatency / float64(s.Working)
}

type verifyResult struct {
	record  *domain.Proxy
	outcome Outcome
}

// Coordinator runs one verification pass: probe rotation, worker fan-out and batched writes.
type Coordinator struct {
	store        ProxyUpdater
	verifier     recordVerifier
	probeURLs    []string
	probeClient  *http.Client
	probeTimeout time.Duration
	batchSize    int
}

func NewCoordinator(store ProxyUpdater, verifier *Verifier, probeURLs []string) *Coordinator {
	return &Coordinator{
		store:        store,
		verifier:     verifier,
		probeURLs:    probeURLs,
		probeTimeout: verifier.timeout,
		batchSize:    BatchSize,
	}
}

// VerifyAll verifies records with at most concurrency probes in flight. Results are
// written in completion order, BatchSize records per store call. Once ctx is done no new
// record is started; finished records are still written.
func (c *Coordinator) VerifyAll(ctx context.Context, records []*domain.Proxy, concurrency int) (Summary, error) {
	var summary Summary
	if len(records) == 0 {
		return summary, nil
	}

	if ctx.Err() != nil {
		return cancelledSummary(len(records)), nil
	}

	rotation := PrepareRotation(ctx, c.probeClient, c.probeURLs, c.probeTimeout)
	if rotation.Len() == 0 {
		// Endpoints probed during a shutdown look unreachable.
		if ctx.Err() != nil {
			return cancelledSummary(len(records)), nil
		}
		return summary, ErrNoProbeEndpoints
	}

	workers := config.ClampThreads(concurrency)
	log.Info(fmt.Sprintf("Checking %d proxies", len(records)), "workers", workers, "endpoints", rotation.Len())

	jobs := make(chan *domain.Proxy)
	results := make(chan verifyResult, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range jobs {
				results <- verifyResult{record: record, outcome: c.verifier.Verify(ctx, record, rotation)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, record := range records {
			select {
			case <-ctx.Done():
				return
			case jobs <- record:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	batch := make([]*domain.Proxy, 0, c.batchSize)
	for result := range results {
		metrics.Verifications.WithLabelValues(result.outcome.String()).Inc()

		switch result.outcome {
		case OutcomeCancelled:
			continue
		case OutcomeWorking:
			summary.Working++
			summary.totalLatency += result.record.LatencyMs
			metrics.ProbeLatency.Observe(result.record.LatencyMs / 1000)
		case OutcomeFailed:
			summary.Failed++
		}
		summary.Processed++
		log.Debug(fmt.Sprintf("Processed proxy %d/%d", summary.Processed, len(records)), "proxy", result.record.Address)

		batch = append(batch, result.record)
		if len(batch) >= c.batchSize {
			c.flush(ctx, batch, &summary)
			batch = make([]*domain.Proxy, 0, c.batchSize)
		}
	}
	if len(batch) > 0 {
		c.flush(ctx, batch, &summary)
	}

	summary.Cancelled = len(records) - summary.Processed
	if summary.Cancelled > 0 {
		log.Warn("Verification cancelled", "skipped", summary.Cancelled)
	}

	return summary, nil
}

func cancelledSummary(pending int) Summary {
	log.Warn("Verification cancelled", "skipped", pending)
	return Summary{Cancelled: pending}
}

// flush writes even after cancellation: those records were verified.
func (c *Coordinator) flush(ctx context.Context, batch []*domain.Proxy, summary *Summary) {
	summary.Flushes++
	if err := c.store.BulkUpdate(context.WithoutCancel(ctx), batch, database.UpdateFields...); err != nil {
		summary.FlushErrors++
		metrics.BatchFlushes.WithLabelValues("failed").Inc()
		log.Error("Failed to save verified proxies", "count", len(batch), "error", err)
		return
	}
	metrics.BatchFlushes.WithLabelValues("ok").Inc()
	log.Info(fmt.Sprintf("Updated %d proxies in the database", len(batch)))
}
