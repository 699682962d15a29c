package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for fetches and extraction.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      prometheus.Histogram
	BooksExtractedTotal  prometheus.Counter
	BooksKeptTotal       prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
	SectionsMissingTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcraw_requests_total",
			Help: "Listing page fetches by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookcraw_request_duration_seconds",
			Help:    "Latency of listing page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	extracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcraw_books_extracted_total",
			Help: "Books parsed from listing pages before date filtering.",
		},
	)
	kept := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcraw_books_kept_total",
			Help: "Books placed in the scrape result.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcraw_errors_total",
			Help: "Failed categories by error type.",
		},
		[]string{"error_type"},
	)
	sectionsMissing := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcraw_sections_missing_total",
			Help: "Pages fetched without a recent releases section.",
		},
	)

	registry.MustRegister(requests, requestDuration, extracted, kept, errorsTotal, sectionsMissing)

	return &Metrics{
		Registry:             registry,
		RequestsTotal:        requests,
		RequestDuration:      requestDuration,
		BooksExtractedTotal:  extracted,
		BooksKeptTotal:       kept,
		ErrorsTotal:          errorsTotal,
		SectionsMissingTotal: sectionsMissing,
	}
}

// IncRequest counts a fetch with the given outcome ("ok" or "error").
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a fetch duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddExtracted adds to the extracted books counter.
func (m *Metrics) AddExtracted(n int) {
	if m == nil {
		return
	}
	m.BooksExtractedTotal.Add(float64(n))
}

// AddKept adds to the kept books counter.
func (m *Metrics) AddKept(n int) {
	if m == nil {
		return
	}
	m.BooksKeptTotal.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncSectionMissing counts a page without the expected section.
func (m *Metrics) IncSectionMissing() {
	if m == nil {
		return
	}
	m.SectionsMissingTotal.Inc()
}
