package pipeline

import (
	"errors"
	"testing"
)

func TestExtractJSONFencedBlock(t *testing.T) {
	text := "Here is the scenario:\n```json\n{\"context\": \"shop\", \"items\": 3}\n```\nDone."
	value, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	obj, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", value)
	}
	if obj["context"] != "shop" {
		t.Errorf("context = %v, want shop", obj["context"])
	}
}

func TestExtractJSONBareObject(t *testing.T) {
	text := `The model says {"answer": 42} and nothing else.`
	value, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	obj := value.(map[string]any)
	if obj["answer"] != float64(42) {
		t.Errorf("answer = %v, want 42", obj["answer"])
	}
}

func TestExtractJSONBareArray(t *testing.T) {
	text := `[{"q": 1}, {"q": 2}]`
	value, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	arr, ok := value.([]any)
	if !ok {
		t.Fatalf("expected array, got %T", value)
	}
	if len(arr) != 2 {
		t.Errorf("len = %d, want 2", len(arr))
	}
}

func TestExtractJSONRepairsLatexBackslashes(t *testing.T) {
	// \frac and \circ are not valid JSON escapes and must be doubled;
	// \n inside the same string must survive untouched.
	text := "```json\n{\"solution\": \"x = \\frac{1}{2}\\nangle = 90\\circ\"}\n```"
	value, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	obj := value.(map[string]any)
	want := "x = \\frac{1}{2}\nangle = 90\\circ"
	if obj["solution"] != want {
		t.Errorf("solution = %q, want %q", obj["solution"], want)
	}
}

func TestExtractJSONMalformed(t *testing.T) {
	for _, text := range []string{
		"no json here at all",
		"{broken",
		"",
	} {
		if _, err := ExtractJSON(text); !errors.Is(err, ErrMalformedOutput) {
			t.Errorf("ExtractJSON(%q) err = %v, want ErrMalformedOutput", text, err)
		}
	}
}

func TestExtractJSONPrefersFenceOverSurroundingBraces(t *testing.T) {
	text := "{not json} then ```json\n{\"ok\": true}\n``` trailing"
	value, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	obj := value.(map[string]any)
	if obj["ok"] != true {
		t.Errorf("ok = %v, want true", obj["ok"])
	}
}

func TestEscapeLatexBackslashes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`\frac{a}{b}`, `\\frac{a}{b}`},
		{`\n`, `\n`},
		{`\"quoted\"`, `\"quoted\"`},
		{`\\already`, `\\already`},
		{`\u00e9`, `\u00e9`},
		{`plain`, `plain`},
		{`trailing\`, `trailing\\`},
	}
	for _, tc := range cases {
		if got := escapeLatexBackslashes(tc.in); got != tc.want {
			t.Errorf("escapeLatexBackslashes(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
