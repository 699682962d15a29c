package scraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aluiziolira/bookcraw/config"
	"github.com/gocolly/colly/v2"
)

const (
	ctxStatus = "status"
	ctxBody   = "body"
)

// Fetcher performs single GET requests for listing pages. It never retries
// and never caches; every call goes to the network.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *Metrics
}

// NewFetcher builds a fetcher that follows redirects to any host.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	// No AllowedDomains: colly checks it on redirects too, and listing
	// pages may redirect to other books.com.tw hosts.
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	// Listing pages are not truncated; colly's default cuts bodies at 10 MiB.
	collector.MaxBodySize = 0
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	// Status codes are judged in Fetch so that any non-2xx is an error.
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxStatus, r.StatusCode)
		r.Ctx.Put(ctxBody, r.Body)
	})

	return &Fetcher{
		cfg:       cfg,
		collector: collector,
		metrics:   metrics,
	}, nil
}

// WithTransport replaces the HTTP transport, mainly for tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch GETs rawURL and returns the body as text. Failures are returned as
// *TransportError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &TransportError{URL: rawURL, Err: err}
	}

	hdr := http.Header{}
	hdr.Set("User-Agent", f.cfg.UserAgent)
	reqCtx := colly.NewContext()

	start := time.Now()
	err := f.collector.Request(http.MethodGet, rawURL, nil, reqCtx, hdr)
	f.metrics.ObserveDuration(time.Since(start))

	status, _ := reqCtx.GetAny(ctxStatus).(int)
	if err == nil && status/100 != 2 {
		err = classifyError(nil, status)
		if err == nil {
			err = ErrStatus{Code: status}
		}
	} else if err != nil {
		err = classifyError(err, status)
	}
	if err != nil {
		f.metrics.IncRequest("error")
		return "", &TransportError{URL: rawURL, StatusCode: status, Err: err}
	}

	f.metrics.IncRequest("ok")
	body, _ := reqCtx.GetAny(ctxBody).([]byte)
	return string(body), nil
}
