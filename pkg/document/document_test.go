package document

import (
	"encoding/json"
	"testing"
)

func TestEncodeEmitsExpectedKeys(t *testing.T) {
	doc, err := New(
		map[string]any{"context": "shop"},
		map[string]any{"questions": []any{"Q1"}},
		map[string]any{"steps": []any{"S1"}},
		map[string]any{"skills": []any{"algebra"}},
		Metadata{
			Mode:            "SCENARIO_FIRST",
			StagesCompleted: 4,
			TotalTokens:     TokenTotals{Input: 100, Output: 200},
			TotalCost:       0.001,
		},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if doc.ID == "" || doc.Hash == "" {
		t.Fatalf("expected id and hash to be set")
	}

	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"scenario", "question", "solution", "analysis", "_pipeline_metadata"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}

	meta, ok := decoded["_pipeline_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata is not an object")
	}
	if meta["stages_completed"].(float64) != 4 {
		t.Errorf("stages_completed = %v, want 4", meta["stages_completed"])
	}
	totals := meta["total_tokens"].(map[string]any)
	if totals["input"].(float64) != 100 || totals["output"].(float64) != 200 {
		t.Errorf("total_tokens = %v", totals)
	}
}

func TestHashIsContentDerived(t *testing.T) {
	meta := Metadata{Mode: "SCENARIO_FIRST", StagesCompleted: 4}
	a, err := New(map[string]any{"k": "v"}, nil, nil, nil, meta)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(map[string]any{"k": "v"}, nil, nil, nil, meta)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Hash != b.Hash {
		t.Errorf("same content should hash identically")
	}
	if a.ID == b.ID {
		t.Errorf("documents must get distinct ids")
	}
}
