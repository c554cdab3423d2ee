package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"proxyfinder/internal/domain"
)

// newForwardProxy starts a server that answers proxied absolute-URI requests with handler.
// The returned address is usable as a proxy address.
func newForwardProxy(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !r.URL.IsAbs() {
			http.Error(w, "not a proxy request", http.StatusBadRequest)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	return strings.TrimPrefix(server.URL, "http://")
}

func newProbeEndpoint(t *testing.T, status int) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	t.Cleanup(server.Close)

	return server.URL + "/json"
}

func jsonLocation(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"country":"Chile","countryCode":"CL","query":"1.2.3.4"}`))
}

type recordingStore struct {
	mu     sync.Mutex
	sizes  []int
	fields [][]string
	err    error
}

func (s *recordingStore) BulkUpdate(_ context.Context, records []*domain.Proxy, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sizes = append(s.sizes, len(records))
	s.fields = append(s.fields, fields)
	if s.err != nil {
		err := s.err
		s.err = nil
		return err
	}
	return nil
}

func (s *recordingStore) calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.sizes...)
}

func makeRecords(address string, n int) []*domain.Proxy {
	records := make([]*domain.Proxy, n)
	for i := range records {
		records[i] = &domain.Proxy{ID: uint64(i + 1), Address: address}
	}
	return records
}
