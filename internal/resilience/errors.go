package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry and optionally carries the
// HTTP status that produced it.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as retryable with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// PermanentError marks an error that must never be retried (auth failures,
// blocked domains, malformed input).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err as non-retryable.
func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

// IsTransient reports whether the error chain contains a TransientError or
// matches common transient network patterns. PermanentError short-circuits
// to false regardless of what it wraps.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
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

	// Wrapped client errors that lost their type on the way up.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether the status is retryable: 429 and the
// 5xx family (plus 408). Other 4xx are caller bugs or hard denials.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// StatusCode extracts the HTTP status from a TransientError in the chain,
// or 0 when none is present.
func StatusCode(err error) int {
	var te *TransientError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// IsRateLimit reports whether the error chain carries an HTTP 429.
func IsRateLimit(err error) bool {
	return StatusCode(err) == 429
}

// IsTimeout reports whether the error chain is a network or context timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "deadline exceeded")
}
