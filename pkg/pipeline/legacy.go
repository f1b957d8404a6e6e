package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/scholastiq/questpipe/pkg/adapter"
	"github.com/scholastiq/questpipe/pkg/config"
	"github.com/scholastiq/questpipe/pkg/prompt"
)

// TemplateLegacy is the single-shot template used by the pre-staged flow.
const TemplateLegacy = "cbs_legacy"

// SingleCall generates the whole document with one model call against the
// legacy template. It exists for mode values other than SCENARIO_FIRST.
type SingleCall struct {
	Adapters map[string]adapter.Adapter
	Prompts  *prompt.Store
	Stages   *config.StageTable
	Retry    adapter.RetryPolicy
	Mode     string
}

// Generate runs the legacy single-call flow and wraps the result in a Run
// with one stage entry.
func (g *SingleCall) Generate(ctx context.Context, pctx prompt.Context) (*Run, error) {
	now := time.Now()
	run := &Run{
		ID:        NewRunID(now),
		Mode:      g.Mode,
		State:     StateScenario,
		StartedAt: now,
	}

	resolved, err := g.Stages.ForStage(TemplateLegacy)
	if err != nil {
		return failLegacy(run, err)
	}
	provider, ok := g.Adapters[resolved.Adapter]
	if !ok {
		return failLegacy(run, fmt.Errorf("adapter %q not configured", resolved.Adapter))
	}

	text, attachments, _, err := prompt.Build(g.Prompts, TemplateLegacy, pctx)
	if err != nil {
		return failLegacy(run, err)
	}

	req := adapter.Request{
		Model:         resolved.Model,
		Prompt:        text,
		Attachments:   attachments,
		Temperature:   resolved.Temperature,
		ThinkingLevel: resolved.ThinkingLevel,
		MaxTokens:     resolved.MaxTokens,
		TopP:          resolved.TopP,
		TopK:          resolved.TopK,
	}

	start := time.Now()
	resp, retries, err := adapter.GenerateWithRetry(ctx, provider, req, g.Retry)
	if err != nil {
		return failLegacy(run, err)
	}

	parsed, err := ExtractJSON(resp.Text)
	if err != nil {
		return failLegacy(run, err)
	}

	run.Stages = append(run.Stages, StageResult{
		Stage:        TemplateLegacy,
		Adapter:      resolved.Adapter,
		Model:        resp.Model,
		Data:         parsed,
		RawText:      resp.Text,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Retries:      retries,
		Duration:     time.Since(start),
	})
	run.TotalInputTokens = resp.Usage.InputTokens
	run.TotalOutputTokens = resp.Usage.OutputTokens
	run.TotalCost = CalculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	run.State = StateDone
	run.FinishedAt = time.Now()

	return run, nil
}

func failLegacy(run *Run, err error) (*Run, error) {
	run.State = StateFailed
	run.FailedStage = TemplateLegacy
	run.FinishedAt = time.Now()
	return run, fmt.Errorf("stage %s: %w", TemplateLegacy, err)
}
