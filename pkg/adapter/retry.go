package adapter

import (
	"context"
	"time"
)

// RetryPolicy defines retry and backoff behavior for transient provider
// errors. Retrying here is a client concern; pipeline stages themselves are
// never re-run after a definitive failure.
type RetryPolicy struct {
	MaxRetries    int
	BaseBackoffMs int
	MaxBackoffMs  int
}

// DefaultRetryPolicy matches the provider clients' usual rate-limit window.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseBackoffMs: 200, MaxBackoffMs: 2000}
}

// GenerateWithRetry calls the adapter, retrying transient failures with
// capped exponential backoff. It returns the response and the number of
// retries that were needed.
func GenerateWithRetry(ctx context.Context, a Adapter, req Request, policy RetryPolicy) (*Response, int, error) {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		resp, err := a.Generate(ctx, req)
		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == policy.MaxRetries {
			return nil, attempt, err
		}
		backoff := computeBackoff(policy.BaseBackoffMs, policy.MaxBackoffMs, attempt)
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, attempt, err
		}
	}
	return nil, policy.MaxRetries, lastErr
}

func computeBackoff(baseMs, maxMs, attempt int) time.Duration {
	backoff := time.Duration(baseMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= time.Duration(maxMs)*time.Millisecond {
			return time.Duration(maxMs) * time.Millisecond
		}
	}
	if backoff > time.Duration(maxMs)*time.Millisecond {
		return time.Duration(maxMs) * time.Millisecond
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
