package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"proxyfinder/internal/app/bootstrap"
	"proxyfinder/internal/config"
	"proxyfinder/internal/database"
	"proxyfinder/internal/domain"

	"gorm.io/gorm"
)

// newCheckEnvironment starts a forward proxy that answers every proxied request with a
// JSON location, and a probe endpoint it can be checked against.
func newCheckEnvironment(t *testing.T) (proxyAddress, endpoint string) {
	t.Helper()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"country": "Chile", "query": "203.0.113.9"})
	}))
	t.Cleanup(proxy.Close)

	probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(probe.Close)

	return strings.TrimPrefix(proxy.URL, "http://"), probe.URL + "/json"
}

func writeSourcesFile(t *testing.T, body string) string {
	t.Helper()

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(source.Close)

	path := filepath.Join(t.TempDir(), "sources.json")
	content := fmt.Sprintf(`[{"url": %q, "parser_type": "plain"}]`, source.URL)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sources: %v", err)
	}
	return path
}

func useCheckConfig(t *testing.T, endpoint, policy string) {
	t.Helper()

	orig := config.GetConfig()
	t.Cleanup(func() { config.SetConfig(orig) })

	cfg, err := config.DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig returned error: %v", err)
	}
	cfg.Checker.TestURLs = []string{endpoint}
	cfg.Checker.Timeout = 2000
	cfg.Checker.Threads = 2
	cfg.Checker.RecheckPolicy = policy
	cfg.Scraper.Timeout = 2000
	cfg.IPBlacklist = nil
	cfg.IPBlacklistSources = nil
	config.SetConfig(cfg)
}

func loadAppProxy(t *testing.T, db *gorm.DB, address string) domain.Proxy {
	t.Helper()

	var proxy domain.Proxy
	if err := db.Where("address = ?", address).First(&proxy).Error; err != nil {
		t.Fatalf("load %s: %v", address, err)
	}
	return proxy
}

func TestCheckProxies(t *testing.T) {
	staleTime := time.Now().Add(-48 * time.Hour)

	seedStale := func(t *testing.T, db *gorm.DB, address string) {
		t.Helper()
		if _, err := database.NewProxyStore(db).InsertIfAbsent(context.Background(), []string{address}); err != nil {
			t.Fatalf("InsertIfAbsent returned error: %v", err)
		}
		err := db.Model(&domain.Proxy{}).Where("address = ?", address).UpdateColumns(map[string]any{
			"is_checked": true,
			"is_working": true,
			"latency":    50.0,
			"updated_at": staleTime,
		}).Error
		if err != nil {
			t.Fatalf("age proxy: %v", err)
		}
	}
	seedUnchecked := func(t *testing.T, db *gorm.DB, address string) {
		t.Helper()
		if _, err := database.NewProxyStore(db).InsertIfAbsent(context.Background(), []string{address}); err != nil {
			t.Fatalf("InsertIfAbsent returned error: %v", err)
		}
	}

	tests := []struct {
		name           string
		settingsPolicy string
		flagPolicy     string
		seed           func(t *testing.T, db *gorm.DB, address string)
		listProxy      bool
		cancelled      bool
		wantErr        bool
		verify         func(t *testing.T, db *gorm.DB, address string)
	}{
		{
			name:           "empty store discovers then checks",
			settingsPolicy: "unchecked+stale",
			listProxy:      true,
			verify: func(t *testing.T, db *gorm.DB, address string) {
				proxy := loadAppProxy(t, db, address)
				if !proxy.IsChecked || !proxy.IsWorking || proxy.LatencyMs <= 0 {
					t.Fatalf("discovered proxy was not verified: %+v", proxy)
				}
				if proxy.Location.String("country") != "Chile" {
					t.Fatalf("location = %v, want country Chile", proxy.Location)
				}
			},
		},
		{
			name:           "nothing new discovered returns early",
			settingsPolicy: "unchecked+stale",
			verify: func(t *testing.T, db *gorm.DB, _ string) {
				var count int64
				if err := db.Model(&domain.Proxy{}).Count(&count).Error; err != nil {
					t.Fatalf("count proxies: %v", err)
				}
				if count != 0 {
					t.Fatalf("store has %d proxies, want 0", count)
				}
			},
		},
		{
			name:           "settings policy skips stale proxies",
			settingsPolicy: "unchecked",
			seed:           seedStale,
			verify: func(t *testing.T, db *gorm.DB, address string) {
				proxy := loadAppProxy(t, db, address)
				if proxy.UpdatedAt.After(staleTime.Add(time.Minute)) {
					t.Fatalf("stale proxy was rechecked under the unchecked policy: %+v", proxy)
				}
			},
		},
		{
			name:           "policy flag overrides settings",
			settingsPolicy: "unchecked",
			flagPolicy:     "stale",
			seed:           seedStale,
			verify: func(t *testing.T, db *gorm.DB, address string) {
				proxy := loadAppProxy(t, db, address)
				if !proxy.UpdatedAt.After(staleTime.Add(time.Minute)) {
					t.Fatalf("stale proxy was not rechecked: %+v", proxy)
				}
				if proxy.LatencyMs == 50 {
					t.Fatal("latency was not remeasured")
				}
			},
		},
		{
			name:           "cancelled run exits cleanly",
			settingsPolicy: "unchecked",
			seed:           seedUnchecked,
			cancelled:      true,
			verify: func(t *testing.T, db *gorm.DB, address string) {
				if proxy := loadAppProxy(t, db, address); proxy.IsChecked {
					t.Fatalf("proxy checked after cancel: %+v", proxy)
				}
			},
		},
		{
			name:           "unknown policy",
			settingsPolicy: "unchecked",
			flagPolicy:     "sometimes",
			wantErr:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxyAddress, endpoint := newCheckEnvironment(t)
			useCheckConfig(t, endpoint, tt.settingsPolicy)

			db := openAppTestDB(t)
			if tt.seed != nil {
				tt.seed(t, db, proxyAddress)
			}

			listing := "junk\n"
			if tt.listProxy {
				listing += proxyAddress + "\n"
			}
			opts := options{
				action:  actionCheck,
				policy:  tt.flagPolicy,
				sources: writeSourcesFile(t, listing),
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancelled {
				cancel()
			}

			err := checkProxies(ctx, &bootstrap.Resources{Store: database.NewProxyStore(db)}, opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("checkProxies returned error: %v", err)
			}
			if tt.verify != nil {
				tt.verify(t, db, proxyAddress)
			}
		})
	}
}
