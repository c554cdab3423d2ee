package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestVerificationsCounterIsExposed(t *testing.T) {
	before := testutil.ToFloat64(Verifications.WithLabelValues("working"))
	Verifications.WithLabelValues("working").Inc()

	if got := testutil.ToFloat64(Verifications.WithLabelValues("working")); got != before+1 {
		t.Fatalf("working verifications = %v, want %v", got, before+1)
	}

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), `proxyfinder_checker_verifications_total{outcome="working"}`) {
		t.Fatalf("metrics output missing verification counter:\n%s", body)
	}
}
