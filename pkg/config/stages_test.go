package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scholastiq/questpipe/pkg/adapter"
)

func TestForStageAppliesDefaults(t *testing.T) {
	table := DefaultStageTable()

	resolved, err := table.ForStage("cbs_scenario")
	if err != nil {
		t.Fatalf("ForStage: %v", err)
	}
	if resolved.Adapter != "google" {
		t.Errorf("adapter = %q, want google", resolved.Adapter)
	}
	if resolved.Model != "gemini-2.5-pro" {
		t.Errorf("model = %q, want gemini-2.5-pro", resolved.Model)
	}
	if resolved.Temperature != 1.0 {
		t.Errorf("temperature = %v, want 1.0", resolved.Temperature)
	}
	if resolved.ThinkingLevel != adapter.ThinkingHigh {
		t.Errorf("thinking level = %q, want high", resolved.ThinkingLevel)
	}
}

func TestForStageUniformModelOverride(t *testing.T) {
	table := DefaultStageTable()
	table.UniformModel = "gemini-2.5-flash"

	for _, stage := range []string{"cbs_scenario", "cbs_analysis_from_solution"} {
		resolved, err := table.ForStage(stage)
		if err != nil {
			t.Fatalf("ForStage(%s): %v", stage, err)
		}
		if resolved.Model != "gemini-2.5-flash" {
			t.Errorf("stage %s: model = %q, want uniform override", stage, resolved.Model)
		}
	}
}

func TestForStageExplicitThinkingOff(t *testing.T) {
	table := DefaultStageTable()
	table.Stages["cbs_solution_from_question"] = StageSettings{
		ThinkingLevel: adapter.ThinkingDisabled,
	}

	resolved, err := table.ForStage("cbs_solution_from_question")
	if err != nil {
		t.Fatalf("ForStage: %v", err)
	}
	// Explicit "off" must not fall back to the defaults' level.
	if resolved.ThinkingLevel != adapter.ThinkingDisabled {
		t.Errorf("thinking level = %q, want off", resolved.ThinkingLevel)
	}

	unset, err := table.ForStage("cbs_scenario")
	if err != nil {
		t.Fatalf("ForStage: %v", err)
	}
	if unset.ThinkingLevel != adapter.ThinkingHigh {
		t.Errorf("unset level should inherit defaults, got %q", unset.ThinkingLevel)
	}
}

func TestForStageRequiresModel(t *testing.T) {
	table := &StageTable{
		Stages: map[string]StageSettings{
			"cbs_scenario": {},
		},
	}

	if _, err := table.ForStage("cbs_scenario"); err == nil {
		t.Fatalf("expected missing-model error")
	}
}

func TestValidateRejectsBadTemperature(t *testing.T) {
	temp := 2.5
	table := &StageTable{
		Stages: map[string]StageSettings{
			"cbs_scenario": {Model: "gemini-2.5-pro", Temperature: &temp},
		},
	}

	if err := table.Validate(); err == nil {
		t.Fatalf("expected temperature range error")
	}
}

func TestValidateRejectsUnknownThinkingLevel(t *testing.T) {
	table := &StageTable{
		Stages: map[string]StageSettings{
			"cbs_scenario": {Model: "gemini-2.5-pro", ThinkingLevel: "extreme"},
		},
	}

	if err := table.Validate(); err == nil {
		t.Fatalf("expected thinking level error")
	}
}

func TestLoadStageTable(t *testing.T) {
	content := `
defaults:
  adapter: google
  model: gemini-2.5-pro
  temperature: 0.7
  thinking_level: high
stages:
  cbs_scenario:
    temperature: 1.0
  cbs_question_from_scenario:
    temperature: 0.8
  cbs_solution_from_question:
    temperature: 0.3
  cbs_analysis_from_solution:
    temperature: 0.8
    thinking_level: medium
retry:
  max_retries: 3
  base_backoff_ms: 50
  max_backoff_ms: 500
`
	path := filepath.Join(t.TempDir(), "stages.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	table, err := LoadStageTable(path)
	if err != nil {
		t.Fatalf("LoadStageTable: %v", err)
	}

	resolved, err := table.ForStage("cbs_analysis_from_solution")
	if err != nil {
		t.Fatalf("ForStage: %v", err)
	}
	if resolved.ThinkingLevel != adapter.ThinkingMedium {
		t.Errorf("thinking level = %q, want medium", resolved.ThinkingLevel)
	}

	policy := table.Retry.Policy()
	if policy.MaxRetries != 3 || policy.BaseBackoffMs != 50 || policy.MaxBackoffMs != 500 {
		t.Errorf("retry policy = %+v, want 3/50/500", policy)
	}
}
