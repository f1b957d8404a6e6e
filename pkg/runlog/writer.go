package runlog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunRecord captures run-level metadata.
type RunRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"`
	Grade     string    `json:"grade,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Chapter   string    `json:"chapter,omitempty"`
	Topic     string    `json:"topic,omitempty"`
}

// StageRecord captures what was sent to and received from the model for one
// stage. The full prompt text lives in prompts/<stage>.txt; only its hash is
// kept here.
type StageRecord struct {
	Name           string `json:"name"`
	Adapter        string `json:"adapter"`
	Model          string `json:"model"`
	PromptHash     string `json:"prompt_hash"`
	Output         string `json:"output,omitempty"`
	OutputHash     string `json:"output_hash,omitempty"`
	InputTokens    int    `json:"input_tokens"`
	OutputTokens   int    `json:"output_tokens"`
	ThoughtTokens  int    `json:"thought_tokens,omitempty"`
	Retries        int    `json:"retries,omitempty"`
	DurationMillis int64  `json:"duration_ms"`
	Error          string `json:"error,omitempty"`
}

const outputTruncateLimit = 4096

// Writer writes run evidence to disk: the run record, the exact prompt sent
// per stage, per-stage records, and the final output document.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, "prompts"), 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(runDir, "stages"), 0755); err != nil {
		return nil, err
	}

	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteStagePrompt saves the full prompt text sent for a stage.
func (w *Writer) WriteStagePrompt(stageName, promptText string) error {
	if stageName == "" {
		return fmt.Errorf("stage name is required")
	}
	header := fmt.Sprintf("stage: %s\ntimestamp: %s\n\n", stageName, time.Now().UTC().Format(time.RFC3339))
	path := filepath.Join(w.runDir, "prompts", stageName+".txt")
	return os.WriteFile(path, []byte(header+promptText), 0644)
}

// WriteStage writes a stage record to stages/<stage>.json, truncating the
// output to a preview and recording its hash when truncated.
func (w *Writer) WriteStage(record StageRecord) error {
	if len(record.Output) > outputTruncateLimit {
		record.OutputHash = HashString(record.Output)
		record.Output = record.Output[:outputTruncateLimit]
	}
	path := filepath.Join(w.runDir, "stages", fmt.Sprintf("%s.json", record.Name))
	return writeJSON(path, record)
}

// WriteDocument writes the final output artifact to output.json.
func (w *Writer) WriteDocument(data []byte) error {
	return os.WriteFile(filepath.Join(w.runDir, "output.json"), data, 0644)
}

// HashString returns the hex SHA256 of a string.
func HashString(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
