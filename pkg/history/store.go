package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultMaxRuns = 20

// RunMeta is the metadata saved alongside each run's output.
type RunMeta struct {
	RunID           string    `json:"run_id"`
	Timestamp       time.Time `json:"timestamp"`
	Mode            string    `json:"mode"`
	Grade           string    `json:"grade,omitempty"`
	Subject         string    `json:"subject,omitempty"`
	Chapter         string    `json:"chapter,omitempty"`
	Topic           string    `json:"topic,omitempty"`
	StagesCompleted int       `json:"stages_completed"`
	TotalCost       float64   `json:"total_cost"`
}

// Store manages saved generation runs under a history root. Runs beyond
// MaxRuns are pruned oldest-first on save.
type Store struct {
	BasePath string
	MaxRuns  int
}

// NewStore creates a history store, defaulting to ~/.questpipe/history.
func NewStore(basePath string, maxRuns int) (*Store, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		basePath = filepath.Join(home, ".questpipe", "history")
	}
	if maxRuns <= 0 {
		maxRuns = defaultMaxRuns
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}
	return &Store{BasePath: basePath, MaxRuns: maxRuns}, nil
}

// SaveRun persists a run's metadata and output document and returns the
// assigned run ID.
func (s *Store) SaveRun(meta RunMeta, output []byte) (string, error) {
	runID := generateRunID(meta.Timestamp)
	meta.RunID = runID

	runDir := filepath.Join(s.BasePath, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, "output.json"), output, 0644); err != nil {
		return "", err
	}

	// Thumbnail carries just enough for list views.
	thumbnail := RunMeta{
		RunID:           runID,
		Timestamp:       meta.Timestamp,
		Mode:            meta.Mode,
		Chapter:         meta.Chapter,
		Topic:           meta.Topic,
		StagesCompleted: meta.StagesCompleted,
		TotalCost:       meta.TotalCost,
	}
	if err := writeJSON(filepath.Join(runDir, "thumbnail.json"), thumbnail); err != nil {
		return "", err
	}

	if err := s.pruneOldRuns(); err != nil {
		return "", err
	}

	return runID, nil
}

// ListRuns returns run metadata newest-first.
func (s *Store) ListRuns() ([]RunMeta, error) {
	ids, err := s.runIDs()
	if err != nil {
		return nil, err
	}

	runs := make([]RunMeta, 0, len(ids))
	for _, id := range ids {
		data, err := os.ReadFile(filepath.Join(s.BasePath, id, "thumbnail.json"))
		if err != nil {
			continue
		}
		var meta RunMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

// LoadRun returns the metadata and output document for a run.
func (s *Store) LoadRun(runID string) (*RunMeta, []byte, error) {
	runDir := filepath.Join(s.BasePath, runID)

	data, err := os.ReadFile(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("run %s not found: %w", runID, err)
	}
	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil, err
	}

	output, err := os.ReadFile(filepath.Join(runDir, "output.json"))
	if err != nil {
		return nil, nil, err
	}
	return &meta, output, nil
}

// DeleteRun removes a saved run. Only IDs naming a run directory directly
// under the store root are accepted; anything that could resolve outside it
// ("..", ".", or any path) is rejected.
func (s *Store) DeleteRun(runID string) error {
	if runID == "" || filepath.Base(runID) != runID || !strings.HasPrefix(runID, "run_") {
		return fmt.Errorf("invalid run ID %q", runID)
	}
	return os.RemoveAll(filepath.Join(s.BasePath, runID))
}

// runIDs returns run directory names sorted newest-first. IDs embed a
// sortable UTC timestamp.
func (s *Store) runIDs() ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "run_") {
			ids = append(ids, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

func (s *Store) pruneOldRuns() error {
	ids, err := s.runIDs()
	if err != nil {
		return err
	}
	for _, id := range ids[min(len(ids), s.MaxRuns):] {
		if err := os.RemoveAll(filepath.Join(s.BasePath, id)); err != nil {
			return err
		}
	}
	return nil
}

func generateRunID(ts time.Time) string {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return fmt.Sprintf("run_%s_%s", ts.UTC().Format("20060102_150405"), uuid.NewString()[:8])
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
