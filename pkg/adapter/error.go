package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AdapterError carries the HTTP status a provider returned alongside the
// underlying error. The SDK-backed adapters (google, anthropic, openai)
// surface their clients' errors wrapped; the DeepSeek adapter builds these
// directly from its REST responses. Temporary marks errors known to be
// retryable regardless of status.
type AdapterError struct {
	Status    int
	Temporary bool
	Err       error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("adapter error (status=%d)", e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether a failed provider call may be retried.
// Rate limits and server-side failures are retryable; cancellation is not,
// because it came from the caller and retrying would ignore it.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var adapterErr *AdapterError
	if !errors.As(err, &adapterErr) {
		return false
	}
	if adapterErr.Temporary {
		return true
	}
	switch {
	case adapterErr.Status == 429:
		return true
	case adapterErr.Status >= 500 && adapterErr.Status <= 599:
		return true
	default:
		return false
	}
}
