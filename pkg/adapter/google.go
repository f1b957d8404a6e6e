package adapter

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Thinking budgets (tokens) for the coarse levels the stage config exposes.
const (
	googleBudgetLow    = 2048
	googleBudgetMedium = 8192
	googleBudgetHigh   = 24576
)

// GoogleAdapter implements the Adapter interface for Gemini models.
type GoogleAdapter struct {
	client *genai.Client
}

// NewGoogleAdapter creates a new Google Gemini adapter.
func NewGoogleAdapter(apiKey string) (*GoogleAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleAdapter{
		client: client,
	}, nil
}

// Name returns the adapter identifier.
func (a *GoogleAdapter) Name() string {
	return "google"
}

// Models returns the list of supported Gemini models.
func (a *GoogleAdapter) Models() []string {
	return []string{
		"gemini-2.5-pro",
		"gemini-2.5-flash",
	}
}

// Generate sends a prompt to Gemini and returns the assembled response.
// PDF and image attachments are sent inline ahead of the prompt text.
func (a *GoogleAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	parts := make([]*genai.Part, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(att.Data, att.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.TopK != nil {
		cfg.TopK = genai.Ptr(float32(*req.TopK))
	}
	if budget, ok := googleThinkingBudget(req.ThinkingLevel); ok {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(budget)),
		}
	}

	resp, err := a.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("google API error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("google returned no candidates")
	}

	usage := Usage{}
	if meta := resp.UsageMetadata; meta != nil {
		usage.InputTokens = int(meta.PromptTokenCount)
		usage.ThoughtTokens = int(meta.ThoughtsTokenCount)
		// Thought tokens are billed as output tokens.
		usage.OutputTokens = int(meta.CandidatesTokenCount) + int(meta.ThoughtsTokenCount)
		usage.TotalTokens = int(meta.TotalTokenCount)
	}

	return &Response{
		Text:  resp.Text(),
		Model: req.Model,
		Usage: usage,
	}, nil
}

func googleThinkingBudget(level ThinkingLevel) (int, bool) {
	switch level {
	case ThinkingLow:
		return googleBudgetLow, true
	case ThinkingMedium:
		return googleBudgetMedium, true
	case ThinkingHigh:
		return googleBudgetHigh, true
	default:
		return 0, false
	}
}
