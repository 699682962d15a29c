package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/aluiziolira/bookcraw/config"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestFetcher(t *testing.T) (*Fetcher, *httpmock.MockTransport) {
	t.Helper()
	cfg := config.DefaultConfig()
	f, err := NewFetcher(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	f.WithTransport(transport)
	return f, transport
}

func TestFetcherReturnsBodyWithUserAgent(t *testing.T) {
	f, transport := newTestFetcher(t)
	const pageURL = "https://www.books.com.tw/web/books_nbtopm_19"

	var gotUA string
	transport.RegisterResponder("GET", pageURL, func(req *http.Request) (*http.Response, error) {
		gotUA = req.Header.Get("User-Agent")
		return htmlResponse(http.StatusOK, "<html>電腦資訊</html>"), nil
	})

	body, err := f.Fetch(context.Background(), pageURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "<html>電腦資訊</html>" {
		t.Fatalf("body = %q", body)
	}
	if gotUA != config.DefaultConfig().UserAgent {
		t.Fatalf("user agent = %q", gotUA)
	}
	if got := testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("ok requests = %v, want 1", got)
	}
}

func TestFetcherRefetchesSameURL(t *testing.T) {
	f, transport := newTestFetcher(t)
	const pageURL = "https://www.books.com.tw/web/sys_prebooks/books/"
	transport.RegisterResponder("GET", pageURL, htmlResponder("<html></html>"))

	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), pageURL); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if got := transport.GetTotalCallCount(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestFetcherStatusErrors(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
		{status: http.StatusInternalServerError, expected: "status"},
		{status: http.StatusNotModified, expected: "status"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			f, transport := newTestFetcher(t)
			const pageURL = "https://www.books.com.tw/web/books_nbtopm_02"
			transport.RegisterResponder("GET", pageURL, httpmock.NewStringResponder(tt.status, "nope"))

			_, err := f.Fetch(context.Background(), pageURL)
			var transportErr *TransportError
			if !errors.As(err, &transportErr) {
				t.Fatalf("expected *TransportError, got %v", err)
			}
			if transportErr.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", transportErr.StatusCode, tt.status)
			}
			if got := errorTypeLabel(err); got != tt.expected {
				t.Fatalf("label = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFetcherConnectionError(t *testing.T) {
	f, transport := newTestFetcher(t)
	const pageURL = "https://www.books.com.tw/web/books_nbtopm_02"
	transport.RegisterResponder("GET", pageURL,
		httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))

	_, err := f.Fetch(context.Background(), pageURL)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if got := errorTypeLabel(err); got != "connection" {
		t.Fatalf("label = %q, want connection", got)
	}
	if got := testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("error requests = %v, want 1", got)
	}
}

func TestFetcherCanceledContext(t *testing.T) {
	f, transport := newTestFetcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "https://www.books.com.tw/web/books_nbtopm_02")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
}

func TestFetcherFollowsRedirects(t *testing.T) {
	const pageURL = "https://www.books.com.tw/web/books_nbtopm_19"
	tests := []struct {
		name   string
		target string
	}{
		{name: "same host", target: "https://www.books.com.tw/web/books_nbtopm_19_new"},
		{name: "bare domain", target: "https://books.com.tw/web/books_nbtopm_19"},
		{name: "other subdomain", target: "https://activity.books.com.tw/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, transport := newTestFetcher(t)
			transport.RegisterResponder("GET", pageURL, func(*http.Request) (*http.Response, error) {
				resp := httpmock.NewStringResponse(http.StatusMovedPermanently, "")
				resp.Header.Set("Location", tt.target)
				return resp, nil
			})
			transport.RegisterResponder("GET", tt.target, htmlResponder("<html>moved</html>"))

			body, err := f.Fetch(context.Background(), pageURL)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if body != "<html>moved</html>" {
				t.Fatalf("body = %q", body)
			}
			if got := transport.GetTotalCallCount(); got != 2 {
				t.Fatalf("calls = %d, want 2", got)
			}
		})
	}
}

func TestFetcherReturnsLargeBodyWhole(t *testing.T) {
	f, transport := newTestFetcher(t)
	const pageURL = "https://www.books.com.tw/web/books_nbtopm_02"
	page := "<html>" + strings.Repeat("<div class=\"item\"></div>", 11<<20/24) + "</html>"
	transport.RegisterResponder("GET", pageURL, htmlResponder(page))

	body, err := f.Fetch(context.Background(), pageURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(body) != len(page) {
		t.Fatalf("body length = %d, want %d", len(body), len(page))
	}
}

func htmlResponse(status int, body string) *http.Response {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return resp
}

func htmlResponder(body string) httpmock.Responder {
	return httpmock.ResponderFromResponse(htmlResponse(http.StatusOK, body))
}
