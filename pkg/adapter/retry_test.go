package adapter

import (
	"context"
	"fmt"
	"testing"
)

type transientAdapter struct {
	failures int
	calls    int
}

func (a *transientAdapter) Generate(_ context.Context, req Request) (*Response, error) {
	a.calls++
	if a.calls <= a.failures {
		return nil, &AdapterError{Status: 429, Temporary: true, Err: fmt.Errorf("rate limit")}
	}
	return &Response{Text: "ok", Model: req.Model, Usage: Usage{InputTokens: 10}}, nil
}

func (a *transientAdapter) Name() string { return "transient" }

func (a *transientAdapter) Models() []string { return []string{"mock-1"} }

type hardFailAdapter struct {
	calls int
}

func (a *hardFailAdapter) Generate(_ context.Context, _ Request) (*Response, error) {
	a.calls++
	return nil, fmt.Errorf("hard failure")
}

func (a *hardFailAdapter) Name() string { return "hardfail" }

func (a *hardFailAdapter) Models() []string { return []string{"mock-1"} }

func TestRetryWithTransientErrors(t *testing.T) {
	impl := &transientAdapter{failures: 2}
	policy := RetryPolicy{MaxRetries: 2, BaseBackoffMs: 1, MaxBackoffMs: 2}

	resp, retries, err := GenerateWithRetry(context.Background(), impl, Request{Model: "mock-1", Prompt: "p"}, policy)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resp == nil || resp.Text != "ok" {
		t.Fatalf("expected response text")
	}
	if retries != 2 {
		t.Fatalf("expected 2 retries, got %d", retries)
	}
}

func TestNoRetryOnPermanentError(t *testing.T) {
	impl := &hardFailAdapter{}
	policy := RetryPolicy{MaxRetries: 3, BaseBackoffMs: 1, MaxBackoffMs: 2}

	_, _, err := GenerateWithRetry(context.Background(), impl, Request{Model: "mock-1", Prompt: "p"}, policy)
	if err == nil {
		t.Fatalf("expected error")
	}
	if impl.calls != 1 {
		t.Fatalf("expected 1 call, got %d", impl.calls)
	}
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	impl := &transientAdapter{failures: 5}
	policy := RetryPolicy{MaxRetries: 5, BaseBackoffMs: 10, MaxBackoffMs: 20}

	_, _, err := GenerateWithRetry(ctx, impl, Request{Model: "mock-1", Prompt: "p"}, policy)
	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if impl.calls != 1 {
		t.Fatalf("expected a single call before cancellation, got %d", impl.calls)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"rate limit", &AdapterError{Status: 429}, true},
		{"server error", &AdapterError{Status: 503}, true},
		{"bad request", &AdapterError{Status: 400}, false},
		{"temporary flag", &AdapterError{Temporary: true}, true},
		{"plain", fmt.Errorf("boom"), false},
	}

	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("%s: IsTransient = %v, want %v", tc.name, got, tc.want)
		}
	}
}
