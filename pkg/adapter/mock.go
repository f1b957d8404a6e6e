package adapter

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	mu              sync.Mutex
	responses       map[string]string
	queue           []string
	defaultResponse string

	Usage Usage
	Err   error

	// Calls records every request seen, in order.
	Calls []Request
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined
// per-prompt responses.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response:"
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// Enqueue appends responses returned in order, ahead of any per-prompt map.
func (a *MockAdapter) Enqueue(responses ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue = append(a.queue, responses...)
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns a deterministic response for the request.
func (a *MockAdapter) Generate(_ context.Context, req Request) (*Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Calls = append(a.Calls, req)
	if a.Err != nil {
		return nil, a.Err
	}

	model := req.Model
	if model == "" {
		model = "mock-1"
	}

	if len(a.queue) > 0 {
		text := a.queue[0]
		a.queue = a.queue[1:]
		return &Response{Text: text, Model: model, Usage: a.Usage}, nil
	}
	if text, ok := a.responses[req.Prompt]; ok {
		return &Response{Text: text, Model: model, Usage: a.Usage}, nil
	}
	text := fmt.Sprintf("%s\n%s", a.defaultResponse, req.Prompt)
	return &Response{Text: text, Model: model, Usage: a.Usage}, nil
}
