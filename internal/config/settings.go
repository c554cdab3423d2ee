package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type Config struct {
	Checker struct {
		Threads       uint32   `json:"threads"`
		Timeout       uint32   `json:"timeout"` // ms
		Protocol      string   `json:"protocol"`
		TestURLs      []string `json:"test_urls"`
		RecheckPolicy string   `json:"recheck_policy"`
		StaleAfter    Timer    `json:"stale_after"`
	} `json:"checker"`

	Scraper struct {
		Threads       uint32 `json:"threads"`
		Timeout       uint32 `json:"timeout"` // ms
		RespectRobots bool   `json:"respect_robots"`
	} `json:"scraper"`

	GeoLite struct {
		DatabasePath string `json:"database_path"`
	} `json:"geolite"`

	WebsiteBlacklist   []string `json:"website_blacklist"`
	IPBlacklist        []string `json:"ip_blacklist"`
	IPBlacklistSources []string `json:"ip_blacklist_sources"`
}

func (c Config) CheckerTimeout() time.Duration {
	return millisOrDefault(c.Checker.Timeout)
}

func (c Config) ScraperTimeout() time.Duration {
	return millisOrDefault(c.Scraper.Timeout)
}

func millisOrDefault(ms uint32) time.Duration {
	if ms == 0 {
		return defaultRequestTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

const (
	settingsFileName      = "settings.json"
	defaultRequestTimeout = 5 * time.Second
)

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex
)

func init() {
	cfg, err := DefaultConfig()
	if err != nil {
		panic(fmt.Errorf("config: embedded defaults are invalid: %w", err))
	}
	configValue.Store(cfg)
}

// DefaultConfig returns a fresh copy of the embedded default settings.
func DefaultConfig() (Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadSettings loads <dir>/settings.json, writing the embedded defaults there first when
// the file does not exist yet.
func ReadSettings(dir string) error {
	path := filepath.Join(dir, settingsFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: read settings: %w", err)
		}

		log.Warn("Settings file not found, creating with default configuration", "path", path)

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create settings directory: %w", err)
		}
		if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
			return fmt.Errorf("config: write default settings: %w", err)
		}

		data = defaultConfig
	}

	// Start from defaults so keys missing in an older file keep sane values.
	newConfig, err := DefaultConfig()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &newConfig); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	SetConfig(newConfig)
	log.Debug("Settings file loaded successfully", "path", path)
	return nil
}

// SetConfig swaps the active configuration snapshot.
func SetConfig(newConfig Config) {
	configMu.Lock()
	defer configMu.Unlock()

	configValue.Store(newConfig)
	updateWebsiteBlocklist(newConfig.WebsiteBlacklist)
}

func GetConfig() Config {
	return configValue.Load().(Config)
}
