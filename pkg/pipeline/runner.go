package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scholastiq/questpipe/pkg/adapter"
	"github.com/scholastiq/questpipe/pkg/config"
	"github.com/scholastiq/questpipe/pkg/prompt"
	"github.com/scholastiq/questpipe/pkg/runlog"
)

// LegacyGenerator produces a document in a single model call, for
// deployments still running the pre-staged flow. The runner dispatches to it
// whenever the configured mode is not SCENARIO_FIRST and otherwise treats it
// as opaque.
type LegacyGenerator interface {
	Generate(ctx context.Context, pctx prompt.Context) (*Run, error)
}

// Runner executes the staged generation flow. Fields are set once before the
// first call to Run; a Runner is safe for concurrent use as long as the
// adapters it holds are.
type Runner struct {
	Adapters map[string]adapter.Adapter
	Prompts  *prompt.Store
	Stages   *config.StageTable
	Retry    adapter.RetryPolicy

	// Mode selects the flow; anything other than SCENARIO_FIRST goes to
	// the legacy generator.
	Mode   string
	Legacy LegacyGenerator

	Logger func(format string, args ...any)

	// RunLogDir, when set, receives per-run evidence directories.
	RunLogDir string
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger(format, args...)
	}
}

func (r *Runner) retryPolicy() adapter.RetryPolicy {
	if r.Retry == (adapter.RetryPolicy{}) {
		return adapter.DefaultRetryPolicy()
	}
	return r.Retry
}

// NewRunID returns a sortable run identifier: a UTC timestamp plus a short
// random suffix to keep concurrent runs distinct.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("%s_%s", now.UTC().Format("20060102_150405"), uuid.NewString()[:8])
}

// Run executes every stage in order, feeding each stage's parsed output into
// the next stage's prompt. On failure the returned Run is marked FAILED with
// the completed stage results preserved, alongside a non-nil error.
func (r *Runner) Run(ctx context.Context, pctx prompt.Context) (*Run, error) {
	mode := r.Mode
	if mode == "" {
		mode = config.ModeScenarioFirst
	}
	if mode != config.ModeScenarioFirst {
		if r.Legacy == nil {
			return nil, fmt.Errorf("mode %q: no legacy generator configured", mode)
		}
		r.logf("mode %s: dispatching to legacy generator", mode)
		return r.Legacy.Generate(ctx, pctx)
	}

	now := time.Now()
	run := &Run{
		ID:        NewRunID(now),
		Mode:      mode,
		State:     StateScenario,
		StartedAt: now,
	}

	var writer *runlog.Writer
	if r.RunLogDir != "" {
		w, err := runlog.NewWriter(r.RunLogDir, run.ID)
		if err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
		writer = w
		if err := writer.WriteRun(runlog.RunRecord{
			ID:        run.ID,
			Timestamp: now.UTC(),
			Mode:      mode,
			Grade:     pctx.Grade,
			Subject:   pctx.Subject,
			Chapter:   pctx.Chapter,
			Topic:     pctx.Topic,
		}); err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
	}

	// Stage payloads accumulate in a private copy so the caller's context
	// is never mutated.
	data := make(map[string]any, len(pctx.Data)+len(stageFlow))
	for k, v := range pctx.Data {
		data[k] = v
	}
	pctx.Data = data

	for _, step := range stageFlow {
		if err := ctx.Err(); err != nil {
			return r.fail(run, step.Template, err)
		}
		run.State = step.State

		resolved, err := r.Stages.ForStage(step.Template)
		if err != nil {
			return r.fail(run, step.Template, err)
		}
		provider, ok := r.Adapters[resolved.Adapter]
		if !ok {
			return r.fail(run, step.Template, fmt.Errorf("adapter %q not configured", resolved.Adapter))
		}

		text, attachments, warnings, err := prompt.Build(r.Prompts, step.Template, pctx)
		if err != nil {
			return r.fail(run, step.Template, err)
		}
		for _, name := range warnings {
			r.logf("stage %s: unresolved placeholder {{%s}}", step.Template, name)
		}
		if writer != nil {
			if err := writer.WriteStagePrompt(step.Template, text); err != nil {
				r.logf("run log: %v", err)
			}
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

		r.logf("stage %s: calling %s/%s", step.Template, resolved.Adapter, resolved.Model)
		start := time.Now()
		resp, retries, err := adapter.GenerateWithRetry(ctx, provider, req, r.retryPolicy())
		elapsed := time.Since(start)
		if err != nil {
			if writer != nil {
				_ = writer.WriteStage(runlog.StageRecord{
					Name:           step.Template,
					Adapter:        resolved.Adapter,
					Model:          resolved.Model,
					PromptHash:     runlog.HashString(text),
					Retries:        retries,
					DurationMillis: elapsed.Milliseconds(),
					Error:          err.Error(),
				})
			}
			return r.fail(run, step.Template, err)
		}

		parsed, parseErr := ExtractJSON(resp.Text)
		if parseErr == nil {
			parseErr = validateStagePayload(parsed)
		}
		if parseErr != nil {
			// The provider billed this call even though its output is
			// unusable; the tokens stay in the run totals.
			run.TotalInputTokens += resp.Usage.InputTokens
			run.TotalOutputTokens += resp.Usage.OutputTokens
			run.TotalCost += CalculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens)
			if writer != nil {
				_ = writer.WriteStage(runlog.StageRecord{
					Name:           step.Template,
					Adapter:        resolved.Adapter,
					Model:          resp.Model,
					PromptHash:     runlog.HashString(text),
					Output:         resp.Text,
					InputTokens:    resp.Usage.InputTokens,
					OutputTokens:   resp.Usage.OutputTokens,
					ThoughtTokens:  resp.Usage.ThoughtTokens,
					Retries:        retries,
					DurationMillis: elapsed.Milliseconds(),
					Error:          parseErr.Error(),
				})
			}
			return r.fail(run, step.Template, parseErr)
		}

		run.Stages = append(run.Stages, StageResult{
			Stage:        step.Template,
			Adapter:      resolved.Adapter,
			Model:        resp.Model,
			Data:         parsed,
			RawText:      resp.Text,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			Retries:      retries,
			Duration:     elapsed,
		})
		run.TotalInputTokens += resp.Usage.InputTokens
		run.TotalOutputTokens += resp.Usage.OutputTokens
		run.TotalCost += CalculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens)
		pctx.Data[step.DataKey] = parsed

		if writer != nil {
			if err := writer.WriteStage(runlog.StageRecord{
				Name:           step.Template,
				Adapter:        resolved.Adapter,
				Model:          resp.Model,
				PromptHash:     runlog.HashString(text),
				Output:         resp.Text,
				InputTokens:    resp.Usage.InputTokens,
				OutputTokens:   resp.Usage.OutputTokens,
				ThoughtTokens:  resp.Usage.ThoughtTokens,
				Retries:        retries,
				DurationMillis: elapsed.Milliseconds(),
			}); err != nil {
				r.logf("run log: %v", err)
			}
		}
	}

	run.State = StateDone
	run.FinishedAt = time.Now()

	if writer != nil {
		doc, err := run.Document()
		if err != nil {
			r.logf("run log: assemble document: %v", err)
		} else if encoded, err := doc.Encode(); err != nil {
			r.logf("run log: encode document: %v", err)
		} else if err := writer.WriteDocument(encoded); err != nil {
			r.logf("run log: %v", err)
		}
	}

	return run, nil
}

// validateStagePayload enforces the shape contract at the stage boundary:
// every stage must emit a non-empty JSON object. Scalars and arrays cannot
// seed the next stage's placeholders.
func validateStagePayload(parsed any) error {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: stage payload is not a JSON object", ErrMalformedOutput)
	}
	if len(obj) == 0 {
		return fmt.Errorf("%w: stage payload is empty", ErrMalformedOutput)
	}
	return nil
}

func (r *Runner) fail(run *Run, stage string, err error) (*Run, error) {
	run.State = StateFailed
	run.FailedStage = stage
	run.FinishedAt = time.Now()
	r.logf("stage %s failed: %v", stage, err)
	return run, fmt.Errorf("stage %s: %w", stage, err)
}
