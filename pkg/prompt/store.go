package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrTemplateNotFound is returned when no template exists for a stage.
var ErrTemplateNotFound = errors.New("template not found")

// The four pipeline stage templates. The store may carry extra keys (e.g.
// the legacy single-call template) but these must always be present.
const (
	TemplateScenario = "cbs_scenario"
	TemplateQuestion = "cbs_question_from_scenario"
	TemplateSolution = "cbs_solution_from_question"
	TemplateAnalysis = "cbs_analysis_from_solution"
)

// requiredPlaceholders lists the placeholders each stage template must
// contain. Checked at load time so a malformed prompt file fails at startup
// instead of mid-run.
var requiredPlaceholders = map[string][]string{
	TemplateScenario: {"Grade", "Subject", "Topic"},
	TemplateQuestion: {"SCENARIO_DATA"},
	TemplateSolution: {"QUESTION_DATA"},
	TemplateAnalysis: {"SOLUTION_DATA"},
}

// Store is a read-only key to template-string mapping. Loaded once and
// shared across concurrent runs without locking.
type Store struct {
	templates map[string]string
}

// NewStore builds a store from an in-memory template map and validates it.
func NewStore(templates map[string]string) (*Store, error) {
	s := &Store{templates: templates}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadStore reads stage templates from a YAML file keyed by template name.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	templates := make(map[string]string)
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("prompt file %s: %w", path, err)
	}

	s, err := NewStore(templates)
	if err != nil {
		return nil, fmt.Errorf("prompt file %s: %w", path, err)
	}
	return s, nil
}

// Template returns the template string for a stage.
func (s *Store) Template(name string) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return tmpl, nil
}

// Has reports whether a template exists for the given name.
func (s *Store) Has(name string) bool {
	_, ok := s.templates[name]
	return ok
}

func (s *Store) validate() error {
	for stage, placeholders := range requiredPlaceholders {
		tmpl, ok := s.templates[stage]
		if !ok {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, stage)
		}
		for _, name := range placeholders {
			if !strings.Contains(tmpl, "{{"+name+"}}") {
				return fmt.Errorf("template %s missing required placeholder {{%s}}", stage, name)
			}
		}
	}
	return nil
}
