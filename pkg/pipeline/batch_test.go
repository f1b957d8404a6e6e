package pipeline

import (
	"context"
	"testing"

	"github.com/scholastiq/questpipe/pkg/adapter"
	"github.com/scholastiq/questpipe/pkg/prompt"
)

func TestRunBatchIsolatesFailures(t *testing.T) {
	// Two items, eight stage calls total; run serially so the queue order
	// maps to items deterministically. Item two fails at its first stage.
	mock := adapter.NewMockAdapter()
	mock.Enqueue(
		`{"context": "shop"}`,
		`{"question": "q"}`,
		`{"answer": 1}`,
		`{"difficulty": "easy"}`,
		`not json`,
	)

	runner := testRunner(mock, t)
	contexts := []prompt.Context{
		{Grade: "10", Subject: "Math", Topic: "Ratios"},
		{Grade: "10", Subject: "Math", Topic: "Fractions"},
	}

	results, err := RunBatch(context.Background(), runner, contexts, 1)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("item 0 err = %v, want success", results[0].Err)
	}
	if results[0].Run.State != StateDone {
		t.Errorf("item 0 state = %s, want DONE", results[0].Run.State)
	}
	if results[1].Err == nil {
		t.Error("item 1 should have failed")
	}
	if results[1].Run == nil || results[1].Run.State != StateFailed {
		t.Errorf("item 1 should carry its partial failed run")
	}
}

func TestRunBatchEmpty(t *testing.T) {
	runner := testRunner(adapter.NewMockAdapter(), t)
	results, err := RunBatch(context.Background(), runner, nil, 4)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}
