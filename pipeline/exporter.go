// Package pipeline writes a scrape result to disk. Books are validated,
// de-duplicated by URL and handed to a Sink in batches by a single writer
// goroutine, so output order follows the result's label order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/bookcraw/config"
	"github.com/aluiziolira/bookcraw/models"
	"github.com/aluiziolira/bookcraw/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrDrainTimeout is returned when the sink does not finish in time.
	ErrDrainTimeout = errors.New("pipeline: drain timed out")

	errSinkStopped = errors.New("pipeline: sink stopped")
)

var drainTimeout = 30 * time.Second

// queueDepth is the number of batches buffered ahead of the writer.
const queueDepth = 8

// Stats counts what an exporter did with the books it was given.
type Stats struct {
	Accepted   int
	Invalid    int
	Duplicates int
	ByCategory map[string]int
}

// Exporter feeds scrape results into a Sink.
type Exporter struct {
	sink      Sink
	batchSize int
	seen      *lru.Cache[string, struct{}]

	mu    sync.Mutex
	stats Stats
}

// NewExporter sizes batches and the URL cache from cfg.
func NewExporter(sink Sink, cfg *config.Config) (*Exporter, error) {
	seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Exporter{
		sink:      sink,
		batchSize: batchSize,
		seen:      seen,
		stats:     Stats{ByCategory: make(map[string]int)},
	}, nil
}

// Export writes every category of result in label order and waits for the
// sink to finish. The URL cache carries over between calls, so a book seen
// in an earlier export is skipped.
func (e *Exporter) Export(ctx context.Context, result *models.ScrapeResult) error {
	batches := make(chan []*models.Book, queueDepth)
	stopped := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- e.drain(batches, stopped)
	}()

	feedErr := e.feed(ctx, result, batches, stopped)
	close(batches)

	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrDrainTimeout, drainTimeout)
	}
	return feedErr
}

// Stats returns a copy of the counters.
func (e *Exporter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.stats
	out.ByCategory = make(map[string]int, len(e.stats.ByCategory))
	for label, n := range e.stats.ByCategory {
		out.ByCategory[label] = n
	}
	return out
}

func (e *Exporter) feed(ctx context.Context, result *models.ScrapeResult, batches chan<- []*models.Book, stopped <-chan struct{}) error {
	batch := make([]*models.Book, 0, e.batchSize)
	send := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case batches <- batch:
		case <-stopped:
			return errSinkStopped
		case <-ctx.Done():
			return ctx.Err()
		}
		batch = make([]*models.Book, 0, e.batchSize)
		return nil
	}

	for _, label := range result.Labels() {
		books, _ := result.Books(label)
		for _, book := range books {
			if !e.accept(label, book) {
				continue
			}
			batch = append(batch, book)
			if len(batch) < e.batchSize {
				continue
			}
			if err := send(); err != nil {
				return err
			}
		}
	}
	return send()
}

func (e *Exporter) drain(batches <-chan []*models.Book, stopped chan<- struct{}) error {
	defer close(stopped)
	for batch := range batches {
		if err := e.sink.Write(batch); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
		slog.Debug("batch written", slog.Int("books", len(batch)))
	}
	return nil
}

func (e *Exporter) accept(label string, book *models.Book) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := parser.ValidateBook(book); err != nil {
		e.stats.Invalid++
		return false
	}
	if found, _ := e.seen.ContainsOrAdd(book.URL, struct{}{}); found {
		e.stats.Duplicates++
		return false
	}
	e.stats.Accepted++
	e.stats.ByCategory[label]++
	return true
}
