package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/aluiziolira/bookcraw/config"
	"github.com/aluiziolira/bookcraw/extractor"
	"github.com/aluiziolira/bookcraw/models"
	"github.com/aluiziolira/bookcraw/recency"
)

// PageFetcher returns the text of a page or a *TransportError.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// RunOptions selects what a run scrapes.
type RunOptions struct {
	// Codes are category codes in the order they should be fetched.
	// Empty means every registered category.
	Codes            []string
	IncludePreorders bool
	RecentDays       int
}

// DefaultRunOptions scrapes every category with the configured window.
func DefaultRunOptions(cfg *config.Config) RunOptions {
	return RunOptions{
		IncludePreorders: cfg.IncludePreorders,
		RecentDays:       cfg.RecentDays,
	}
}

// Orchestrator fetches categories one at a time, pausing between them, and
// turns any per-category failure into an empty entry.
type Orchestrator struct {
	cfg       *config.Config
	fetcher   PageFetcher
	extractor *extractor.Extractor
	metrics   *Metrics
	now       func() time.Time
	pause     func(ctx context.Context, d time.Duration)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the source of "today" for date filtering.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithPause replaces the wait between categories.
func WithPause(pause func(ctx context.Context, d time.Duration)) Option {
	return func(o *Orchestrator) { o.pause = pause }
}

// WithMetrics records run counters on m.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator wires a fetcher to the extractor for cfg's site.
func NewOrchestrator(cfg *config.Config, fetcher PageFetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor.New(cfg.SiteOrigin),
		now:       time.Now,
		pause:     sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// outcome is the result of scraping one source.
type outcome struct {
	label        string
	url          string
	books        []*models.Book
	fetched      bool
	sectionFound bool
	extracted    int
	err          error
}

// Run scrapes the requested categories and, optionally, pre-orders. The
// returned result has exactly one entry per requested label; a failed
// category maps to an empty slice.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*models.ScrapeResult, *models.RunSummary) {
	if ctx == nil {
		ctx = context.Background()
	}
	codes := opts.Codes
	if len(codes) == 0 {
		codes = o.cfg.Categories.Codes()
	}

	result := models.NewScrapeResult()
	summary := &models.RunSummary{
		StartTime:         o.now(),
		Requested:         len(codes),
		ErrorsByType:      make(map[string]int),
		PreordersIncluded: opts.IncludePreorders,
	}

	for _, code := range codes {
		label, ok := o.cfg.Categories.Label(code)
		if !ok {
			slog.Warn("unregistered category code, using code as label", slog.String("code", code))
			label = code
		}
		url := o.cfg.CategoryURL(code)
		slog.Info("fetching category",
			slog.String("code", code),
			slog.String("category", label),
			slog.String("url", url),
		)
		o.record(result, summary, o.scrape(ctx, label, url, true, opts.RecentDays))
		// Runs after the last category too, before pre-orders or return.
		o.pause(ctx, o.cfg.Delay)
	}

	if opts.IncludePreorders {
		slog.Info("fetching pre-orders", slog.String("url", o.cfg.PreorderURL))
		o.record(result, summary, o.scrape(ctx, config.PreorderLabel, o.cfg.PreorderURL, false, 0))
	}

	summary.EndTime = o.now()
	summary.TotalCount = result.Total()
	slog.Info("scrape finished",
		slog.Int("books", summary.TotalCount),
		slog.Int("categories", result.Len()),
		slog.Int("failed", len(summary.FailedLabels)),
	)
	return result, summary
}

func (o *Orchestrator) scrape(ctx context.Context, label, url string, filter bool, days int) (out outcome) {
	out.label = label
	out.url = url
	defer func() {
		if r := recover(); r != nil {
			out.books = nil
			out.err = errPanic{Value: r}
		}
	}()

	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}

	out.fetched = true
	page, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		out.err = err
		return out
	}

	listing := o.extractor.Extract(page, label)
	out.sectionFound = listing.SectionFound
	out.extracted = len(listing.Books)
	out.books = listing.Books
	if filter {
		out.books = recency.Filter(listing.Books, days, o.now())
		slog.Info("filtered recent books",
			slog.String("category", label),
			slog.Int("kept", len(out.books)),
			slog.Int("extracted", out.extracted),
			slog.String("cutoff", recency.Cutoff(o.now(), days).Format(recency.DateLayout)),
		)
	}
	return out
}

func (o *Orchestrator) record(result *models.ScrapeResult, summary *models.RunSummary, out outcome) {
	if out.fetched {
		summary.RequestCount++
	}

	if out.err != nil {
		kind := errorTypeLabel(out.err)
		if kind == "canceled" {
			slog.Warn("category skipped", slog.String("category", out.label), slog.Any("error", out.err))
		} else {
			slog.Error("category failed",
				slog.String("category", out.label),
				slog.String("url", out.url),
				slog.String("error_type", kind),
				slog.Any("error", out.err),
			)
		}
		summary.FailedLabels = append(summary.FailedLabels, out.label)
		summary.ErrorsByType[kind]++
		o.metrics.IncError(kind)
		result.Set(out.label, nil)
		return
	}

	if !out.sectionFound {
		summary.SectionsMissing++
		o.metrics.IncSectionMissing()
	}
	if len(out.books) == 0 {
		summary.EmptyLabels = append(summary.EmptyLabels, out.label)
	}
	summary.ExtractedCount += out.extracted
	o.metrics.AddExtracted(out.extracted)
	o.metrics.AddKept(len(out.books))
	result.Set(out.label, out.books)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
