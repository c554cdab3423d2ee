package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

const (
	actionCheck    = "check"
	actionDiscover = "discover"
	actionShow     = "show"
	actionExport   = "export"
	actionCount    = "count"
)

var errUnknownAction = errors.New("unknown action")

type options struct {
	action string

	status  string
	limit   int
	sortBy  string
	reverse bool

	output string
	format string
	all    bool

	policy      string
	threads     int
	sources     string
	debug       bool
	metricsAddr string
	version     bool
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("proxyfinder", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: proxyfinder [flags] [check|discover|show|export|count]")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.status, "status", "working", "Filter proxies by status: working, broken, unchecked, all")
	fs.IntVar(&opts.limit, "limit", 0, "Maximum number of proxies to show, count or export (0 = no limit)")
	fs.StringVar(&opts.sortBy, "sort-by", "latency", "Sort proxies by latency, created_at or updated_at")
	fs.BoolVar(&opts.reverse, "reverse", false, "Reverse the sort order")
	fs.StringVar(&opts.output, "output", "", "Export destination (default proxies.<format>)")
	fs.StringVar(&opts.format, "format", "", "Export format: csv, json, txt (default from -output extension, else csv)")
	fs.BoolVar(&opts.all, "all", false, "Export every proxy instead of only working ones")
	fs.StringVar(&opts.policy, "policy", "", "Recheck policy: unchecked, stale, unchecked+stale, all (default from settings)")
	fs.IntVar(&opts.threads, "threads", 0, "Verification workers (default from settings)")
	fs.StringVar(&opts.sources, "sources", "", "Path to a sources.json file (default SOURCES_FILE, else built-in list)")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Expose prometheus metrics on this address while running")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch fs.NArg() {
	case 0:
		opts.action = actionCheck
	case 1:
		opts.action = fs.Arg(0)
	default:
		return opts, fmt.Errorf("expected at most one action, got %v", fs.Args())
	}

	switch opts.action {
	case actionCheck, actionDiscover, actionShow, actionExport, actionCount:
	default:
		return opts, fmt.Errorf("%w %q", errUnknownAction, opts.action)
	}

	if opts.limit < 0 {
		return opts, fmt.Errorf("-limit must not be negative")
	}

	return opts, nil
}
