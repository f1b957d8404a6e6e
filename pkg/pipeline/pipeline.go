package pipeline

import (
	"time"

	"github.com/scholastiq/questpipe/pkg/document"
	"github.com/scholastiq/questpipe/pkg/prompt"
)

// State is the orchestrator's position in the fixed stage order.
type State string

const (
	StateScenario State = "SCENARIO"
	StateQuestion State = "QUESTION"
	StateSolution State = "SOLUTION"
	StateAnalysis State = "ANALYSIS"
	StateDone     State = "DONE"
	StateFailed   State = "FAILED"
)

// stageStep binds a template name to the context key its parsed output is
// merged under and to the state the machine occupies while running it.
type stageStep struct {
	Template string
	DataKey  string
	State    State
}

// stageFlow is the fixed four-stage order. Each stage's prompt embeds the
// parsed payload of the stage before it; no stage runs before its
// predecessor completes.
var stageFlow = []stageStep{
	{Template: prompt.TemplateScenario, DataKey: "SCENARIO_DATA", State: StateScenario},
	{Template: prompt.TemplateQuestion, DataKey: "QUESTION_DATA", State: StateQuestion},
	{Template: prompt.TemplateSolution, DataKey: "SOLUTION_DATA", State: StateSolution},
	{Template: prompt.TemplateAnalysis, DataKey: "ANALYSIS_DATA", State: StateAnalysis},
}

// StageResult captures one stage execution. Immutable after creation.
type StageResult struct {
	Stage        string
	Adapter      string
	Model        string
	Data         any
	RawText      string
	InputTokens  int
	OutputTokens int
	Retries      int
	Duration     time.Duration
}

// Run is the record of one pipeline execution: the ordered stage results
// plus accumulated token and cost totals. Appended to as stages complete,
// read-only once the run reaches DONE or FAILED.
type Run struct {
	ID    string
	Mode  string
	State State

	Stages            []StageResult
	TotalInputTokens  int
	TotalOutputTokens int
	TotalCost         float64

	StartedAt  time.Time
	FinishedAt time.Time

	// FailedStage names the stage that aborted the run, if any.
	FailedStage string
}

// StagesCompleted returns the number of stages that finished successfully.
func (r *Run) StagesCompleted() int {
	return len(r.Stages)
}

// stageData returns the parsed payload for a context key, or nil.
func (r *Run) stageData(key string) any {
	for i, step := range stageFlow {
		if step.DataKey == key && i < len(r.Stages) {
			return r.Stages[i].Data
		}
	}
	return nil
}

// Document assembles the final output artifact for the run.
func (r *Run) Document() (*document.Document, error) {
	return document.New(
		r.stageData("SCENARIO_DATA"),
		r.stageData("QUESTION_DATA"),
		r.stageData("SOLUTION_DATA"),
		r.stageData("ANALYSIS_DATA"),
		document.Metadata{
			Mode:            r.Mode,
			StagesCompleted: r.StagesCompleted(),
			TotalTokens: document.TokenTotals{
				Input:  r.TotalInputTokens,
				Output: r.TotalOutputTokens,
			},
			TotalCost: r.TotalCost,
		},
	)
}
