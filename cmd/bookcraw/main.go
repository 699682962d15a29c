package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/bookcraw/config"
	"github.com/aluiziolira/bookcraw/models"
	"github.com/aluiziolira/bookcraw/pipeline"
	"github.com/aluiziolira/bookcraw/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// codeList collects repeated -category flags.
type codeList []string

func (c *codeList) String() string {
	return strings.Join(*c, ",")
}

func (c *codeList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*c = append(*c, part)
		}
	}
	return nil
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	defaultCfg := config.DefaultConfig()
	daysDefault := defaultCfg.RecentDays
	if value, ok, err := config.EnvInt("BOOKCRAW_DAYS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid BOOKCRAW_DAYS: %v\n", err)
		os.Exit(1)
	} else if ok {
		daysDefault = value
	}
	delayDefault := defaultCfg.Delay
	if value, ok, err := config.EnvDuration("BOOKCRAW_DELAY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid BOOKCRAW_DELAY: %v\n", err)
		os.Exit(1)
	} else if ok {
		delayDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("BOOKCRAW_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("BOOKCRAW_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	envCategories, _ := config.EnvList("BOOKCRAW_CATEGORIES")
	var categories codeList

	flag.Var(&categories, "category", "Category code to scrape (repeatable or comma separated); default all")
	noPreorders := flag.Bool("no-preorders", false, "Skip the pre-order listing")
	days := flag.Int("days", daysDefault, "Keep books published within this many days")
	delay := flag.Duration("delay", delayDefault, "Pause after each category fetch")
	timeout := flag.Duration("timeout", defaultCfg.Timeout, "HTTP request timeout")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, dual, or none")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	dryRun := flag.Bool("dry-run", false, "Print the result as JSON to stdout instead of writing files")
	list := flag.Bool("list-categories", false, "Print registered categories and exit")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()
	codes := selectCategories(flag.CommandLine, categories, envCategories)

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.IncludePreorders = !*noPreorders
	cfg.RecentDays = *days
	cfg.Delay = *delay
	cfg.Timeout = *timeout
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if *dryRun {
		cfg.OutputFormat = "none"
	}

	if *list {
		for _, cat := range cfg.Categories.Categories() {
			fmt.Printf("%s\t%s\n", cat.Code, cat.Label)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Categories.Validate(codes); err != nil {
		slog.Error("invalid category", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, metrics)

	opts := scraper.DefaultRunOptions(cfg)
	opts.Codes = codes

	slog.Info("starting book-craw",
		slog.Int("categories", len(codes)),
		slog.Bool("preorders", opts.IncludePreorders),
		slog.Int("days", opts.RecentDays),
	)

	orchestrator := scraper.NewOrchestrator(cfg, fetcher, scraper.WithMetrics(metrics))
	result, summary := orchestrator.Run(ctx, opts)
	// A second interrupt from here on kills the process; what was scraped
	// still gets written.
	stop()

	written, err := deliver(context.WithoutCancel(ctx), cfg, result, *dryRun, os.Stdout)
	stopMetricsServer(metricsServer)
	if err != nil {
		slog.Error("output failed", slog.Any("error", err))
		os.Exit(1)
	}
	if !*dryRun {
		printSummary(summary, written)
	}
}

// selectCategories returns the -category codes when the flag was given on
// the command line, and the environment list otherwise.
func selectCategories(flags *flag.FlagSet, flagged codeList, fromEnv []string) []string {
	given := false
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "category" {
			given = true
		}
	})
	if given {
		return flagged
	}
	return fromEnv
}

// deliver writes result according to cfg and returns the file written, or
// "" when nothing was. A dry run encodes the result to stdout instead.
func deliver(ctx context.Context, cfg *config.Config, result *models.ScrapeResult, dryRun bool, stdout io.Writer) (string, error) {
	if result.Total() == 0 {
		slog.Warn("no books found, skipping output")
		return "", nil
	}

	if dryRun {
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		return "", nil
	}

	if cfg.OutputFormat == "none" {
		return "", nil
	}
	if err := export(ctx, cfg, result); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return cfg.OutputFile, nil
}

func export(ctx context.Context, cfg *config.Config, result *models.ScrapeResult) (err error) {
	sink, err := pipeline.NewSink(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("create sink: %w", err)
	}
	defer func() {
		if closeErr := sink.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close sink: %w", closeErr)
		}
	}()

	exporter, err := pipeline.NewExporter(sink, cfg)
	if err != nil {
		return err
	}
	if err := exporter.Export(ctx, result); err != nil {
		return err
	}
	if err := sink.Validate(); err != nil {
		return fmt.Errorf("output validation: %w", err)
	}

	stats := exporter.Stats()
	slog.Info("output written",
		slog.String("file", cfg.OutputFile),
		slog.Int("books", stats.Accepted),
		slog.Int("invalid", stats.Invalid),
		slog.Int("duplicates", stats.Duplicates),
	)
	return nil
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func stopMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(summary *models.RunSummary, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Categories:    %d\n", summary.Requested)
	fmt.Printf("  Pre-orders:    %v\n", summary.PreordersIncluded)
	fmt.Printf("  Requests:      %d\n", summary.RequestCount)
	fmt.Printf("  Extracted:     %d\n", summary.ExtractedCount)
	fmt.Printf("  Kept:          %d\n", summary.TotalCount)
	fmt.Printf("  Failed:        %d\n", len(summary.FailedLabels))
	if len(summary.FailedLabels) > 0 {
		fmt.Printf("  Failed labels: %s\n", strings.Join(summary.FailedLabels, ", "))
	}
	if len(summary.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", summary.ErrorsByType)
	}
	if summary.SectionsMissing > 0 {
		fmt.Printf("  No section:    %d\n", summary.SectionsMissing)
	}
	fmt.Printf("  Duration:      %v\n", summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))
	if outputFile != "" {
		fmt.Printf("  Output file:   %s\n", outputFile)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
