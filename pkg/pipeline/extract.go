package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedOutput means a stage response could not be parsed as JSON.
// Fatal for the run: a malformed stage output cannot feed the next stage.
var ErrMalformedOutput = errors.New("malformed model output")

var jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractJSON pulls the JSON payload out of a model response. It prefers a
// fenced ```json block, then falls back to the outermost object or array in
// the raw text. Responses that embed LaTeX often contain bare backslashes
// (\frac, \circ) that break strict JSON; those are repaired before parsing
// is given up on.
func ExtractJSON(text string) (any, error) {
	if match := jsonFenceRe.FindStringSubmatch(text); match != nil {
		if value, ok := rigorousParse(strings.TrimSpace(match[1])); ok {
			return value, nil
		}
	}

	arrayStart := strings.Index(text, "[")
	objectStart := strings.Index(text, "{")

	if arrayStart != -1 && (objectStart == -1 || arrayStart < objectStart) {
		if end := strings.LastIndex(text, "]"); end > arrayStart {
			if value, ok := rigorousParse(text[arrayStart : end+1]); ok {
				return value, nil
			}
		}
	} else if objectStart != -1 {
		if end := strings.LastIndex(text, "}"); end > objectStart {
			if value, ok := rigorousParse(text[objectStart : end+1]); ok {
				return value, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: no parseable JSON in response", ErrMalformedOutput)
}

func rigorousParse(text string) (any, bool) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err == nil && value != nil {
		return value, true
	}
	fixed := escapeLatexBackslashes(text)
	if err := json.Unmarshal([]byte(fixed), &value); err == nil && value != nil {
		return value, true
	}
	return nil, false
}

// escapeLatexBackslashes doubles backslashes that do not start a valid JSON
// escape, so \frac survives while \n, \", \\, \uXXXX and \/ are kept.
func escapeLatexBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) {
			switch s[i+1] {
			case 'n', '"', '\\', 'u', '/':
				b.WriteByte(c)
				b.WriteByte(s[i+1])
				i++
				continue
			}
		}
		b.WriteString(`\\`)
	}
	return b.String()
}
