package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/scholastiq/questpipe/pkg/adapter"
)

var placeholderRe = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// Context carries the substitution values and file payloads for one run.
// Data holds prior-stage JSON payloads keyed by SCENARIO_DATA and friends;
// they are serialized as indented JSON when injected into a template.
type Context struct {
	Grade           string
	Subject         string
	Chapter         string
	Topic           string
	AdditionalNotes string

	// Fields carries extra scalar placeholders beyond the fixed set.
	Fields map[string]string

	// Data holds structured stage payloads, injected as JSON text.
	Data map[string]any

	// Attachments pass through to the provider unchanged, for any stage.
	Attachments []adapter.Attachment
}

// Build resolves the template for stageName and substitutes every recognized
// placeholder from the context. Unrecognized placeholders are left verbatim
// and returned as warnings. Substitution is exact-match and case-sensitive,
// and the result depends only on the arguments.
func Build(store *Store, stageName string, pctx Context) (string, []adapter.Attachment, []string, error) {
	tmpl, err := store.Template(stageName)
	if err != nil {
		return "", nil, nil, err
	}

	values := map[string]string{
		"Grade":            pctx.Grade,
		"Subject":          pctx.Subject,
		"Chapter":          pctx.Chapter,
		"Topic":            pctx.Topic,
		"Additional_Notes": pctx.AdditionalNotes,
	}
	for name, value := range pctx.Fields {
		values[name] = value
	}
	for name, payload := range pctx.Data {
		text, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return "", nil, nil, fmt.Errorf("serialize %s: %w", name, err)
		}
		values[name] = string(text)
	}

	unknown := make(map[string]struct{})
	result := placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if value, ok := values[name]; ok {
			return value
		}
		unknown[name] = struct{}{}
		return match
	})

	warnings := make([]string, 0, len(unknown))
	for name := range unknown {
		warnings = append(warnings, name)
	}
	sort.Strings(warnings)

	return result, pctx.Attachments, warnings, nil
}
