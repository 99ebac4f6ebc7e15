package provider

import (
	"errors"
	"fmt"

	"github.com/paradyne-ai/callcore/pkg/models"
)

var (
	// ErrWebSessionUnsupported is returned by vendors without browser
	// voice sessions.
	ErrWebSessionUnsupported = errors.New("provider does not support web sessions")

	// ErrBadSignature is returned when webhook authentication fails.
	ErrBadSignature = errors.New("webhook signature verification failed")

	// ErrUnknownProvider is returned for provider names outside the
	// registry.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Error is a failed provider API call. Transient failures (timeouts, 429,
// 5xx, open circuit) are safe to retry; the scheduler consumes a retry slot
// for them, while non-transient failures fail the attempt outright.
type Error struct {
	Provider   models.Provider
	Op         string
	StatusCode int
	Message    string
	Transient  bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s returned status %d: %s", e.Provider, e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s failed: %s", e.Provider, e.Op, e.Message)
}

// Retryable reports whether retrying the same request may succeed.
func (e *Error) Retryable() bool {
	return e.Transient
}

// IsRetryable reports whether err carries a retryable provider failure.
// Unrecognized errors count as retryable; only a definite vendor rejection
// (4xx) is final.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return true
}
