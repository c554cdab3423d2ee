package checker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"proxyfinder/internal/domain"
)

type staticResolver domain.Document

func (s staticResolver) Lookup(string) domain.Document {
	return domain.Document(s)
}

func TestVerifyWorkingProxy(t *testing.T) {
	endpoint := newProbeEndpoint(t, http.StatusOK)
	proxyAddress := newForwardProxy(t, jsonLocation)

	record := &domain.Proxy{Address: proxyAddress, CreatedAt: time.Now().Add(-time.Hour)}
	errText := "old failure"
	record.Error = &errText

	outcome := NewVerifier(2*time.Second).Verify(context.Background(), record, NewRotation(endpoint))

	if outcome != OutcomeWorking {
		t.Fatalf("outcome = %s, want working", outcome)
	}
	if !record.IsChecked || !record.IsWorking {
		t.Fatalf("record state checked=%t working=%t", record.IsChecked, record.IsWorking)
	}
	if record.LatencyMs <= 0 {
		t.Fatalf("latency = %v, want > 0", record.LatencyMs)
	}
	if record.Location.String("country") != "Chile" {
		t.Fatalf("location = %v", record.Location)
	}
	if record.Error != nil {
		t.Fatalf("error = %q, want nil", *record.Error)
	}
	if record.UpdatedAt.Before(record.CreatedAt) {
		t.Fatalf("updated_at %s before created_at %s", record.UpdatedAt, record.CreatedAt)
	}
}

func TestVerifyFailureKeepsLatency(t *testing.T) {
	endpoint := newProbeEndpoint(t, http.StatusOK)
	badGateway := newForwardProxy(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"non 2xx", badGateway, "502 Bad Gateway"},
		{"refused", "127.0.0.1:1", "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &domain.Proxy{
				Address:   tt.address,
				IsWorking: true,
				LatencyMs: 123.45,
				Location:  domain.Document{"country": "Chile"},
			}

			outcome := NewVerifier(2*time.Second).Verify(context.Background(), record, NewRotation(endpoint))

			if outcome != OutcomeFailed {
				t.Fatalf("outcome = %s, want failed", outcome)
			}
			if !record.IsChecked || record.IsWorking {
				t.Fatalf("record state checked=%t working=%t", record.IsChecked, record.IsWorking)
			}
			if record.LatencyMs != 123.45 {
				t.Fatalf("latency = %v, want unchanged 123.45", record.LatencyMs)
			}
			if record.Location != nil {
				t.Fatalf("location = %v, want nil", record.Location)
			}
			if got := record.ErrorText(); got != tt.want {
				t.Fatalf("error = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerifyCancelledLeavesRecordUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record := &domain.Proxy{Address: "1.2.3.4:80", LatencyMs: 10}
	outcome := NewVerifier(time.Second).Verify(ctx, record, NewRotation("http://example.invalid/json"))

	if outcome != OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", outcome)
	}
	if record.IsChecked || !record.UpdatedAt.IsZero() || record.LatencyMs != 10 {
		t.Fatalf("cancelled verification mutated record: %+v", record)
	}
}

func TestVerifyFallsBackToLocationResolver(t *testing.T) {
	endpoint := newProbeEndpoint(t, http.StatusOK)
	proxyAddress := newForwardProxy(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	})

	verifier := NewVerifier(2*time.Second, WithLocationFallback(staticResolver{"country": "Germany"}))
	record := &domain.Proxy{Address: proxyAddress}

	if outcome := verifier.Verify(context.Background(), record, NewRotation(endpoint)); outcome != OutcomeWorking {
		t.Fatalf("outcome = %s, want working", outcome)
	}
	if record.Location.String("country") != "Germany" {
		t.Fatalf("location = %v, want resolver result", record.Location)
	}
}

func TestRoundLatency(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{1234567 * time.Nanosecond, 1.23},
		{1235999 * time.Nanosecond, 1.24},
		{time.Microsecond, 0.01},
		{0, 0.01},
	}

	for _, tt := range tests {
		if got := roundLatency(tt.elapsed); got != tt.want {
			t.Fatalf("roundLatency(%s) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}
