package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"proxyfinder/internal/app/bootstrap"
	"proxyfinder/internal/app/version"
	"proxyfinder/internal/blacklist"
	"proxyfinder/internal/config"
	"proxyfinder/internal/database"
	"proxyfinder/internal/export"
	"proxyfinder/internal/jobs/checker"
	"proxyfinder/internal/jobs/scraper"
	"proxyfinder/internal/metrics"
	"proxyfinder/internal/support"
)

const (
	logFileName = "proxyfinder.log"
	runLockKey  = "proxyfinder:run-lock"
)

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found. Falling back to system environment variables.")
	}

	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.version {
		fmt.Println(version.Get())
		return nil
	}

	dataDir := support.DataDir()
	closeLog, err := setupLogging(dataDir, opts.debug)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := bootstrap.Setup(dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			log.Warn("error releasing resources", "error", err)
		}
	}()

	if opts.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, opts.metricsAddr); err != nil {
				log.Error("metrics listener terminated", "error", err)
			}
		}()
	}

	return runAction(ctx, os.Stdout, res, opts)
}

func runAction(ctx context.Context, stdout io.Writer, res *bootstrap.Resources, opts options) error {
	switch opts.action {
	case actionCheck:
		return withRunLock(ctx, func() error { return checkProxies(ctx, res, opts) })
	case actionDiscover:
		return withRunLock(ctx, func() error {
			_, err := discoverProxies(ctx, res.Store, opts)
			return err
		})
	case actionShow:
		return showProxies(ctx, stdout, res.Store, opts)
	case actionCount:
		return countProxies(ctx, stdout, res.Store, opts)
	case actionExport:
		return exportProxies(ctx, res.Store, opts)
	default:
		return fmt.Errorf("%w %q", errUnknownAction, opts.action)
	}
}

// setupLogging mirrors the log to <dataDir>/proxyfinder.log.
func setupLogging(dataDir string, debug bool) (func(), error) {
	level := log.InfoLevel
	if raw := support.GetEnv("LOG_LEVEL", ""); raw != "" {
		parsed, err := log.ParseLevel(strings.ToLower(raw))
		if err != nil {
			log.Warn("invalid LOG_LEVEL, using info", "value", raw)
		} else {
			level = parsed
		}
	}
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetReportTimestamp(true)

	if err := support.EnsureDir(dataDir); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dataDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Warn("log file unavailable, logging to stderr only", "error", err)
		return func() {}, nil
	}

	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

// withRunLock keeps two processes sharing a REDIS_URL from checking at the same time.
// Without REDIS_URL it just runs fn.
func withRunLock(ctx context.Context, fn func() error) error {
	client, err := support.GetRedisClient()
	if errors.Is(err, support.ErrRedisNotConfigured) {
		return fn()
	}
	if err != nil {
		return fmt.Errorf("failed to get redis client: %w", err)
	}

	lock, err := support.AcquireRunLock(ctx, client, runLockKey, support.DefaultRunLockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("failed to release run lock", "error", err)
		}
	}()

	return fn()
}

func checkProxies(ctx context.Context, res *bootstrap.Resources, opts options) error {
	cfg := config.GetConfig()

	rawPolicy := opts.policy
	if rawPolicy == "" {
		rawPolicy = cfg.Checker.RecheckPolicy
	}
	policy, err := checker.ParsePolicy(rawPolicy)
	if err != nil {
		return err
	}
	staleAfter := cfg.Checker.StaleAfter.Duration(24 * time.Hour)

	pending, err := checker.SelectPending(context.WithoutCancel(ctx), res.Store, policy, time.Now(), staleAfter)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		log.Info("No proxies found, getting proxies from multiple sources.")

		inserted, err := discoverProxies(ctx, res.Store, opts)
		if err != nil {
			return err
		}
		if inserted == 0 {
			log.Info("No new proxies to check")
			return nil
		}

		pending, err = checker.SelectPending(context.WithoutCancel(ctx), res.Store, checker.PolicyUnchecked, time.Now(), staleAfter)
		if err != nil {
			return err
		}
	}

	threads := opts.threads
	if threads <= 0 {
		threads = int(cfg.Checker.Threads)
	}

	var resolver checker.LocationResolver
	if res.GeoLite != nil {
		resolver = res.GeoLite
	}

	coordinator := checker.NewCoordinator(res.Store, checker.NewVerifierFromConfig(cfg, resolver), cfg.Checker.TestURLs)
	summary, err := coordinator.VerifyAll(ctx, pending, threads)
	if err != nil {
		return err
	}

	stats, err := res.Store.Stats(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}

	log.Info(
		fmt.Sprintf("Proxies working: %d, latency mean: %.2f ms", stats.Working, stats.AverageLatency),
		"processed", summary.Processed,
		"working", summary.Working,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
	)

	return nil
}

// discoverProxies treats an unusable source list as zero candidates.
func discoverProxies(ctx context.Context, store scraper.ProxyInserter, opts options) (int64, error) {
	cfg := config.GetConfig()

	path := opts.sources
	if path == "" {
		path = support.GetEnv("SOURCES_FILE", "")
	}

	sources, err := config.LoadSources(path)
	if err != nil {
		log.Error("Error loading sources", "path", path, "error", err)
		return 0, nil
	}

	if _, err := blacklist.Refresh(context.WithoutCancel(ctx), nil, cfg); err != nil {
		log.Warn("Blacklist refresh failed, continuing with previous entries", "error", err)
	}

	discoverer := scraper.NewDiscoverer(scraper.NewFetcherFromConfig(cfg), int(cfg.Scraper.Threads))
	return discoverer.DiscoverAndStore(ctx, sources, store)
}

func listFilter(opts options) (database.ProxyFilter, error) {
	filter, err := database.FilterForStatus(opts.status)
	if err != nil {
		return filter, err
	}
	filter.SortBy = opts.sortBy
	filter.Descending = opts.reverse
	filter.Limit = opts.limit
	return filter, nil
}

func showProxies(ctx context.Context, w io.Writer, store *database.ProxyStore, opts options) error {
	filter, err := listFilter(opts)
	if err != nil {
		return err
	}

	proxies, err := store.Query(ctx, filter)
	if err != nil {
		return err
	}
	if len(proxies) == 0 {
		_, err := fmt.Fprintln(w, countLine(0, opts.status))
		return err
	}

	_, err = fmt.Fprintln(w, renderProxyTable(proxies))
	return err
}

func countProxies(ctx context.Context, w io.Writer, store *database.ProxyStore, opts options) error {
	filter, err := listFilter(opts)
	if err != nil {
		return err
	}

	count, err := store.Count(ctx, filter)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, countLine(count, opts.status))
	return err
}

func exportProxies(ctx context.Context, store *database.ProxyStore, opts options) error {
	format, err := export.ParseFormat(opts.format, opts.output)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = "proxies." + string(format)
	}

	filter := database.ProxyFilter{SortBy: opts.sortBy, Descending: opts.reverse, Limit: opts.limit}
	if !opts.all {
		working := true
		filter.IsWorking = &working
	}

	log.Info(fmt.Sprintf("Exporting proxies to %s", output), "all", opts.all, "format", format)

	proxies, err := store.Query(ctx, filter)
	if err != nil {
		return err
	}
	if err := export.WriteFile(output, format, proxies); err != nil {
		return err
	}

	log.Info(fmt.Sprintf("Exported %d proxies", len(proxies)), "path", output)
	return nil
}
