package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransportError reports a failed page fetch: the connection failed, the
// request timed out, or the server answered with a non-2xx status.
// Err holds one of the classified causes below.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string { return "timeout: " + e.Err.Error() }

func (e ErrTimeout) Unwrap() error { return e.Err }

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string { return "connection: " + e.Err.Error() }

func (e ErrConnection) Unwrap() error { return e.Err }

// ErrStatus indicates a non-2xx response. Common statuses get their own
// wrappers so they can be told apart in metrics.
type ErrStatus struct {
	Code int
}

func (e ErrStatus) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string { return "forbidden: " + e.Err.Error() }

func (e ErrForbidden) Unwrap() error { return e.Err }

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string { return "not_found: " + e.Err.Error() }

func (e ErrNotFound) Unwrap() error { return e.Err }

// ErrRateLimited indicates the target rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string { return "rate_limited: " + e.Err.Error() }

func (e ErrRateLimited) Unwrap() error { return e.Err }

// errPanic wraps a value recovered while processing a category.
type errPanic struct {
	Value any
}

func (e errPanic) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var status ErrStatus
	if errors.As(err, &status) {
		return "status"
	}
	var p errPanic
	if errors.As(err, &p) {
		return "panic"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}

// classifyError wraps a transport failure or a bad status in its typed cause.
func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout{Err: err}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrTimeout{Err: err}
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return ErrConnection{Err: err}
		}
		if statusCode == 0 {
			return err
		}
	}

	status := ErrStatus{Code: statusCode}
	switch statusCode {
	case http.StatusForbidden:
		return ErrForbidden{Err: status}
	case http.StatusNotFound:
		return ErrNotFound{Err: status}
	case http.StatusTooManyRequests:
		return ErrRateLimited{Err: status}
	}
	return status
}
