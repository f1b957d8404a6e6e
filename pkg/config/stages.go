package config

import (
	"fmt"
	"os"

	"github.com/scholastiq/questpipe/pkg/adapter"
	"gopkg.in/yaml.v3"
)

// StageSettings is the per-stage model configuration as written in YAML.
// Zero fields fall back to the table defaults.
type StageSettings struct {
	Adapter       string                `yaml:"adapter,omitempty"`
	Model         string                `yaml:"model,omitempty"`
	Temperature   *float64              `yaml:"temperature,omitempty"`
	ThinkingLevel adapter.ThinkingLevel `yaml:"thinking_level,omitempty"`
	MaxTokens     int                   `yaml:"max_tokens,omitempty"`
	TopP          *float64              `yaml:"top_p,omitempty"`
	TopK          *float64              `yaml:"top_k,omitempty"`
}

// StageTable holds per-stage model configuration plus global defaults and an
// optional uniform-model override applying the same model to every stage.
// Loaded once and treated as immutable for the process lifetime.
type StageTable struct {
	Defaults     StageSettings            `yaml:"defaults"`
	UniformModel string                   `yaml:"uniform_model,omitempty"`
	Stages       map[string]StageSettings `yaml:"stages"`
	Retry        RetryConfig              `yaml:"retry,omitempty"`
}

// RetryConfig defines retry and backoff behavior for provider calls.
type RetryConfig struct {
	MaxRetries    int `yaml:"max_retries,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
}

// Policy converts the YAML retry block to an adapter retry policy.
func (r RetryConfig) Policy() adapter.RetryPolicy {
	policy := adapter.DefaultRetryPolicy()
	if r.MaxRetries > 0 {
		policy.MaxRetries = r.MaxRetries
	}
	if r.BaseBackoffMs > 0 {
		policy.BaseBackoffMs = r.BaseBackoffMs
	}
	if r.MaxBackoffMs > 0 {
		policy.MaxBackoffMs = r.MaxBackoffMs
	}
	if policy.MaxBackoffMs < policy.BaseBackoffMs {
		policy.MaxBackoffMs = policy.BaseBackoffMs
	}
	return policy
}

// ResolvedStage is a stage's effective configuration after applying table
// defaults and the uniform-model override.
type ResolvedStage struct {
	Adapter       string
	Model         string
	Temperature   float64
	ThinkingLevel adapter.ThinkingLevel
	MaxTokens     int
	TopP          *float64
	TopK          *float64
}

// LoadStageTable reads a stage configuration table from a YAML file.
func LoadStageTable(path string) (*StageTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var table StageTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("stage config %s: %w", path, err)
	}

	return &table, nil
}

// DefaultStageTable returns the built-in stage configuration.
func DefaultStageTable() *StageTable {
	temp := func(v float64) *float64 { return &v }
	return &StageTable{
		Defaults: StageSettings{
			Adapter:       "google",
			Model:         "gemini-2.5-pro",
			Temperature:   temp(0.7),
			ThinkingLevel: adapter.ThinkingHigh,
		},
		Stages: map[string]StageSettings{
			"cbs_scenario": {
				Temperature:   temp(1.0),
				ThinkingLevel: adapter.ThinkingHigh,
			},
			"cbs_question_from_scenario": {
				Temperature:   temp(0.8),
				ThinkingLevel: adapter.ThinkingHigh,
			},
			"cbs_solution_from_question": {
				Temperature:   temp(0.3),
				ThinkingLevel: adapter.ThinkingHigh,
			},
			"cbs_analysis_from_solution": {
				Temperature:   temp(0.8),
				ThinkingLevel: adapter.ThinkingMedium,
			},
		},
	}
}

// Validate checks every entry in the table for out-of-range values.
func (t *StageTable) Validate() error {
	if err := validateSettings("defaults", t.Defaults); err != nil {
		return err
	}
	for name, settings := range t.Stages {
		if err := validateSettings(name, settings); err != nil {
			return err
		}
	}
	return nil
}

func validateSettings(name string, s StageSettings) error {
	if s.Temperature != nil && (*s.Temperature < 0.0 || *s.Temperature > 2.0) {
		return fmt.Errorf("stage %s: temperature %.2f out of range [0.0, 2.0]", name, *s.Temperature)
	}
	if !s.ThinkingLevel.Valid() {
		return fmt.Errorf("stage %s: unknown thinking level %q", name, s.ThinkingLevel)
	}
	return nil
}

// ForStage resolves the effective settings for a stage. A model must be
// defined by the stage entry, the uniform override, or the defaults; there
// is no hardcoded fallback model.
func (t *StageTable) ForStage(name string) (ResolvedStage, error) {
	settings := t.Stages[name]

	resolved := ResolvedStage{
		Adapter:       settings.Adapter,
		Model:         settings.Model,
		Temperature:   0.7,
		ThinkingLevel: settings.ThinkingLevel,
		MaxTokens:     settings.MaxTokens,
		TopP:          settings.TopP,
		TopK:          settings.TopK,
	}

	if resolved.Adapter == "" {
		resolved.Adapter = t.Defaults.Adapter
	}
	if resolved.Adapter == "" {
		resolved.Adapter = "google"
	}
	if t.UniformModel != "" {
		resolved.Model = t.UniformModel
	}
	if resolved.Model == "" {
		resolved.Model = t.Defaults.Model
	}
	if resolved.Model == "" {
		return ResolvedStage{}, fmt.Errorf("no model configured for stage %q", name)
	}
	if settings.Temperature != nil {
		resolved.Temperature = *settings.Temperature
	} else if t.Defaults.Temperature != nil {
		resolved.Temperature = *t.Defaults.Temperature
	}
	if resolved.ThinkingLevel == adapter.ThinkingOff {
		resolved.ThinkingLevel = t.Defaults.ThinkingLevel
	}
	if resolved.MaxTokens == 0 {
		resolved.MaxTokens = t.Defaults.MaxTokens
	}
	if resolved.TopP == nil {
		resolved.TopP = t.Defaults.TopP
	}
	if resolved.TopK == nil {
		resolved.TopK = t.Defaults.TopK
	}

	return resolved, nil
}
