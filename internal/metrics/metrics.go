package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proxyfinder"

var (
	registry = prometheus.NewRegistry()

	// SourceFetches counts source fetches by result: ok, failed, skipped.
	SourceFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "discovery",
		Name:      "source_fetches_total",
		Help:      "Source pages fetched, by result.",
	}, []string{"result"})

	CandidatesDiscovered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "discovery",
		Name:      "candidates_total",
		Help:      "Unique valid proxy candidates produced by discovery.",
	})

	ProxiesInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "discovery",
		Name:      "inserted_total",
		Help:      "Proxy records newly created by discovery.",
	})

	// Verifications counts verifier outcomes: working, failed, cancelled.
	Verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checker",
		Name:      "verifications_total",
		Help:      "Proxy verifications, by outcome.",
	}, []string{"outcome"})

	ProbeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checker",
		Name:      "probe_latency_seconds",
		Help:      "Latency of successful probes through a proxy.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
	})

	// BatchFlushes counts persistence flushes by result: ok, failed.
	BatchFlushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checker",
		Name:      "batch_flushes_total",
		Help:      "Verification batches written to the store, by result.",
	}, []string{"result"})

	ProbeEndpoints = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "checker",
		Name:      "probe_endpoints",
		Help:      "Probe endpoints reachable at the start of the current pass.",
	})
)

func init() {
	registry.MustRegister(
		SourceFetches,
		CandidatesDiscovered,
		ProxiesInserted,
		Verifications,
		ProbeLatency,
		BatchFlushes,
		ProbeEndpoints,
	)
}

func Registry() *prometheus.Registry {
	return registry
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Metrics listener shutdown failed", "error", err)
		}
	}()

	log.Info("Serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
