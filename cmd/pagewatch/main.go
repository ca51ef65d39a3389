package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/pagewatch/pkg/config"
	"github.com/umputun/pagewatch/pkg/content"
	"github.com/umputun/pagewatch/pkg/matcher"
	"github.com/umputun/pagewatch/pkg/notify"
	"github.com/umputun/pagewatch/pkg/tracker"
	"github.com/umputun/pagewatch/pkg/watcher"
	"github.com/umputun/pagewatch/server"
)

// Opts with all CLI options
type Opts struct {
	Config   string   `short:"c" long:"config" env:"CONFIG" description:"path to YAML config file"`
	URL      string   `short:"u" long:"url" env:"PAGE_URL" description:"watched page URL"`
	Webhook  string   `short:"w" long:"webhook" env:"DISCORD_WEBHOOK_URL" description:"webhook URL for alerts"`
	Keywords []string `short:"k" long:"keyword" env:"KEYWORDS" env-delim:"," description:"keyword to look for, repeatable"`
	Interval interval `short:"i" long:"interval" env:"CHECK_INTERVAL" description:"delay between checks, duration (5m) or seconds (300)"`
	Mode     string   `short:"m" long:"mode" env:"EXTRACT_MODE" description:"text extraction mode (auto, html, article, feed)"`
	Listen   string   `short:"l" long:"listen" env:"LISTEN" description:"status server listen address"`
	Once     bool     `long:"once" description:"run a single check and exit"`

	// common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

// interval accepts either a duration like "5m" or plain seconds like "300"
type interval time.Duration

// UnmarshalFlag implements flags.Unmarshaler
func (i *interval) UnmarshalFlag(value string) error {
	value = strings.TrimSpace(value)
	if secs, err := strconv.Atoi(value); err == nil {
		*i = interval(time.Duration(secs) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid interval %q, expected duration (5m) or seconds (300)", value)
	}
	*i = interval(d)
	return nil
}

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor, opts.Webhook)
	lgr.Printf("[INFO] starting pagewatch version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()
	if err != nil {
		lgr.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	lgr.Print("[INFO] shutdown complete")
}

// run loads configuration, wires the watcher and blocks until ctx is canceled.
// With opts.Once set it performs a single check and returns its error.
func run(ctx context.Context, opts Opts) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Webhook.URL != opts.Webhook {
		// webhook set in config file, hide it as well
		setupLog(opts.Debug, opts.NoColor, cfg.Webhook.URL)
	}

	w, err := makeWatcher(cfg)
	if err != nil {
		return err
	}

	if opts.Once {
		outcome, err := w.Check(ctx)
		if err != nil {
			return fmt.Errorf("check failed (%s): %w", outcome, err)
		}
		lgr.Printf("[INFO] check completed: %s", outcome)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })

	if cfg.Server.Listen != "" {
		srv := server.New(server.Params{
			Config: cfg,
			Status: w,
			Info: server.Info{
				URL:      cfg.Page.URL,
				Keywords: cfg.Keywords,
				Interval: cfg.Schedule.Interval,
			},
			Version: revision,
			Debug:   opts.Debug,
		})
		g.Go(func() error { return srv.Run(gctx) })
	}

	return g.Wait()
}

// loadConfig builds configuration from defaults, optional file and CLI overrides
func loadConfig(opts Opts) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if opts.URL != "" {
		cfg.Page.URL = opts.URL
	}
	if opts.Webhook != "" {
		cfg.Webhook.URL = opts.Webhook
	}
	if len(opts.Keywords) > 0 {
		cfg.Keywords = opts.Keywords
	}
	if opts.Interval != 0 {
		cfg.Schedule.Interval = time.Duration(opts.Interval)
	}
	if opts.Mode != "" {
		cfg.Page.Mode = opts.Mode
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// makeWatcher creates the watcher with all its collaborators, cfg expected to be validated
func makeWatcher(cfg *config.Config) (*watcher.Watcher, error) {
	mode, err := content.ParseMode(cfg.Page.Mode)
	if err != nil {
		return nil, fmt.Errorf("page mode: %w", err)
	}
	policy, err := tracker.ParsePolicy(cfg.Fingerprint.Policy)
	if err != nil {
		return nil, fmt.Errorf("fingerprint policy: %w", err)
	}
	format, err := notify.ParseFormat(cfg.Webhook.Format)
	if err != nil {
		return nil, fmt.Errorf("webhook format: %w", err)
	}

	m := matcher.New(cfg.Keywords)
	lgr.Printf("[INFO] watching %s for %d keywords, mode %s, fingerprint %s", cfg.Page.URL, len(m.Keywords()), mode, policy)

	return watcher.New(watcher.Params{
		Fetcher: content.NewHTTPFetcher(content.FetcherConfig{
			Timeout:   cfg.Page.Timeout,
			UserAgent: cfg.Page.UserAgent,
			MaxSize:   cfg.Page.MaxSize,
		}),
		Extractor: content.NewExtractor(mode),
		Matcher:   m,
		Tracker:   tracker.New(nil, tracker.Options{Policy: policy, Window: cfg.Fingerprint.Window}),
		Notifier: notify.NewWebhook(notify.WebhookConfig{
			URL:      cfg.Webhook.URL,
			Format:   format,
			Username: cfg.Webhook.Username,
			Timeout:  cfg.Webhook.Timeout,
		}),
		URL:      cfg.Page.URL,
		Interval: cfg.Schedule.Interval,
	}), nil
}

func setupLog(dbg, noColor bool, secrets ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if noColor {
		color.NoColor = true
	}
	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	var secs []string
	for _, s := range secrets {
		if s != "" {
			secs = append(secs, s)
		}
	}
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
