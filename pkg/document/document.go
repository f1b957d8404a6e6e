package document

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TokenTotals aggregates token counts across all stage calls.
type TokenTotals struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Metadata describes how a document was produced.
type Metadata struct {
	Mode            string      `json:"mode"`
	StagesCompleted int         `json:"stages_completed"`
	TotalTokens     TokenTotals `json:"total_tokens"`
	TotalCost       float64     `json:"total_cost"`
}

// Document is the immutable final output artifact of a generation run.
type Document struct {
	ID        string
	CreatedAt time.Time
	Hash      string

	Scenario any
	Question any
	Solution any
	Analysis any
	Metadata Metadata
}

type documentJSON struct {
	Scenario any      `json:"scenario"`
	Question any      `json:"question"`
	Solution any      `json:"solution"`
	Analysis any      `json:"analysis"`
	Metadata Metadata `json:"_pipeline_metadata"`
}

// New assembles a document and computes its identity and content hash.
func New(scenario, question, solution, analysis any, meta Metadata) (*Document, error) {
	d := &Document{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Scenario:  scenario,
		Question:  question,
		Solution:  solution,
		Analysis:  analysis,
		Metadata:  meta,
	}
	data, err := json.Marshal(documentJSON{
		Scenario: d.Scenario,
		Question: d.Question,
		Solution: d.Solution,
		Analysis: d.Analysis,
		Metadata: d.Metadata,
	})
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	d.Hash = hex.EncodeToString(sum[:])[:16]
	return d, nil
}

// Encode renders the document as the output JSON artifact.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(documentJSON{
		Scenario: d.Scenario,
		Question: d.Question,
		Solution: d.Solution,
		Analysis: d.Analysis,
		Metadata: d.Metadata,
	}, "", "  ")
}
