package prompt

import (
	"strings"
	"testing"

	"github.com/scholastiq/questpipe/pkg/adapter"
)

func testStore(t *testing.T, overrides map[string]string) *Store {
	t.Helper()
	templates := validTemplates()
	for k, v := range overrides {
		templates[k] = v
	}
	store, err := NewStore(templates)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestBuildSubstitutesScalarsAndData(t *testing.T) {
	store := testStore(t, map[string]string{
		TemplateQuestion: "Solve {{Topic}} problems: {{SCENARIO_DATA}}",
	})

	pctx := Context{
		Topic: "Algebra",
		Data: map[string]any{
			"SCENARIO_DATA": map[string]any{"context": "shop"},
		},
	}

	text, _, warnings, err := Build(store, TemplateQuestion, pctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if !strings.HasPrefix(text, "Solve Algebra problems: ") {
		t.Errorf("scalar substitution failed: %q", text)
	}
	if !strings.Contains(text, `"context": "shop"`) {
		t.Errorf("JSON payload not injected: %q", text)
	}
}

func TestBuildLeavesUnknownPlaceholders(t *testing.T) {
	store := testStore(t, map[string]string{
		TemplateScenario: "{{Grade}} {{Subject}} {{Topic}} {{Mystery}} {{topic}}",
	})

	pctx := Context{Grade: "10", Subject: "Math", Topic: "Algebra"}

	text, _, warnings, err := Build(store, TemplateScenario, pctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Case-sensitive: {{topic}} does not match Topic.
	if !strings.Contains(text, "{{Mystery}}") || !strings.Contains(text, "{{topic}}") {
		t.Errorf("unknown placeholders must stay verbatim: %q", text)
	}
	if len(warnings) != 2 || warnings[0] != "Mystery" || warnings[1] != "topic" {
		t.Errorf("warnings = %v, want [Mystery topic]", warnings)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	store := testStore(t, nil)
	pctx := Context{
		Grade:   "9",
		Subject: "Physics",
		Topic:   "Motion",
		Data: map[string]any{
			"SCENARIO_DATA": map[string]any{"setting": "racetrack", "values": []any{1.0, 2.0}},
		},
	}

	first, _, _, err := Build(store, TemplateQuestion, pctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, _, _, err := Build(store, TemplateQuestion, pctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if first != second {
		t.Errorf("Build is not deterministic")
	}
}

func TestBuildPassesAttachmentsThrough(t *testing.T) {
	store := testStore(t, nil)
	atts := []adapter.Attachment{
		{Filename: "chapter.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4")},
		{Filename: "figure.png", MIMEType: "image/png", Data: []byte{0x89, 0x50}},
	}

	_, got, _, err := Build(store, TemplateScenario, Context{Grade: "10", Subject: "Math", Topic: "Algebra", Attachments: atts})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(got) != 2 || got[0].Filename != "chapter.pdf" || got[1].MIMEType != "image/png" {
		t.Errorf("attachments not passed through unchanged: %+v", got)
	}
}

func TestBuildUnknownStage(t *testing.T) {
	store := testStore(t, nil)
	if _, _, _, err := Build(store, "cbs_missing", Context{}); err == nil {
		t.Fatalf("expected template lookup error")
	}
}
