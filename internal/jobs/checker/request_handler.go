package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"proxyfinder/internal/config"
	"proxyfinder/internal/domain"
	"proxyfinder/internal/support"

	"github.com/charmbracelet/log"
)

const maxProbeBodyBytes = 64 << 10

type Outcome int

const (
	OutcomeWorking Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWorking:
		return "working"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// LocationResolver fills in a location when the probe endpoint does not return one.
type LocationResolver interface {
	Lookup(address string) domain.Document
}

// Verifier checks one proxy with one request through it.
type Verifier struct {
	protocol string
	timeout  time.Duration
	location LocationResolver
	now      func() time.Time
}

type VerifierOption func(*Verifier)

// WithProtocol selects how the candidate is spoken to: support.ProtocolHTTP or support.ProtocolSOCKS5.
func WithProtocol(protocol string) VerifierOption {
	return func(v *Verifier) {
		v.protocol = protocol
	}
}

func WithLocationFallback(resolver LocationResolver) VerifierOption {
	return func(v *Verifier) {
		v.location = resolver
	}
}

func NewVerifier(timeout time.Duration, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		protocol: support.ProtocolHTTP,
		timeout:  timeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func NewVerifierFromConfig(cfg config.Config, resolver LocationResolver) *Verifier {
	opts := []VerifierOption{WithProtocol(cfg.Checker.Protocol)}
	if resolver != nil {
		opts = append(opts, WithLocationFallback(resolver))
	}
	return NewVerifier(cfg.CheckerTimeout(), opts...)
}

// Verify probes a random endpoint of rotation through record and mutates record with the
// verdict. Once ctx is done it returns OutcomeCancelled without touching record; a probe that
// already started is not interrupted.
func (v *Verifier) Verify(ctx context.Context, record *domain.Proxy, rotation Rotation) Outcome {
	if ctx.Err() != nil {
		return OutcomeCancelled
	}

	record.MarkAttempted(v.now())

	endpoint := rotation.Pick()
	if endpoint == "" {
		record.MarkFailed(ExtractErrorCause(ErrNoProbeEndpoints))
		return OutcomeFailed
	}

	latency, body, err := v.probe(context.WithoutCancel(ctx), record.Address, endpoint)
	if err != nil {
		record.MarkFailed(ExtractErrorCause(err))
		log.Debug("Proxy connection failed", "proxy", record.Address, "endpoint", endpoint, "error", record.ErrorText())
		return OutcomeFailed
	}

	location := decodeLocation(body)
	if location == nil && v.location != nil {
		location = v.location.Lookup(record.Address)
	}

	record.MarkWorking(latency, location)
	log.Info("Proxy is working", "proxy", record.Address, "latency_ms", latency)

	return OutcomeWorking
}

func (v *Verifier) probe(ctx context.Context, address, endpoint string) (float64, []byte, error) {
	transport, err := support.CreateTransport(address, v.protocol, v.timeout)
	if err != nil {
		return 0, nil, err
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   v.timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", support.RandomUserAgent())
	req.Header.Set("Connection", "close")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}

	return roundLatency(time.Since(start)), body, nil
}

// roundLatency converts to milliseconds with two decimals. A success never reports 0.
func roundLatency(elapsed time.Duration) float64 {
	ms := float64(elapsed) / float64(time.Millisecond)
	rounded := math.Round(ms*100) / 100
	if rounded < 0.01 {
		return 0.01
	}
	return rounded
}

func decodeLocation(body []byte) domain.Document {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil || len(doc) == 0 {
		return nil
	}
	return doc
}
