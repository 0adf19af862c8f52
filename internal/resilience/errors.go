package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// UpstreamError carries an HTTP status from an upstream service call.
type UpstreamError struct {
	Err        error
	StatusCode int
}

func (e *UpstreamError) Error() string { return e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstreamError wraps err with the upstream HTTP status code.
func NewUpstreamError(err error, statusCode int) *UpstreamError {
	return &UpstreamError{Err: err, StatusCode: statusCode}
}

// ShouldTrip is the default failure classifier. Cancellation by the caller
// and 4xx answers (other than 408/429) say nothing about upstream health.
func ShouldTrip(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return IsTransientHTTPStatus(ue.StatusCode)
	}
	return true
}

// IsTransient reports whether err looks like a network-level or server-side
// hiccup.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return IsTransientHTTPStatus(ue.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus returns true for statuses that indicate an upstream
// availability problem.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	default:
		return false
	}
}
