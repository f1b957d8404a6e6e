package adapter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const openaiDefaultMaxTokens = 8192

// OpenAIAdapter implements the Adapter interface for OpenAI models.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Models returns the list of supported OpenAI models.
func (a *OpenAIAdapter) Models() []string {
	return []string{
		"gpt-5.2-instant",
		"gpt-5.2-thinking",
		"gpt-5.2-pro",
	}
}

// Generate sends a prompt to OpenAI and returns the assembled response.
// File attachments are not supported over the chat completions surface.
func (a *OpenAIAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	if len(req.Attachments) > 0 {
		return nil, fmt.Errorf("openai adapter does not support file attachments")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = openaiDefaultMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if effort, ok := openaiReasoningEffort(req.ThinkingLevel); ok {
		params.ReasoningEffort = effort
	} else {
		params.Temperature = openai.Float(req.Temperature)
		if req.TopP != nil {
			params.TopP = openai.Float(*req.TopP)
		}
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	usage := Usage{
		InputTokens:   int(resp.Usage.PromptTokens),
		OutputTokens:  int(resp.Usage.CompletionTokens),
		ThoughtTokens: int(resp.Usage.CompletionTokensDetails.ReasoningTokens),
		TotalTokens:   int(resp.Usage.TotalTokens),
	}

	return &Response{
		Text:  resp.Choices[0].Message.Content,
		Model: req.Model,
		Usage: usage,
	}, nil
}

func openaiReasoningEffort(level ThinkingLevel) (shared.ReasoningEffort, bool) {
	switch level {
	case ThinkingLow:
		return shared.ReasoningEffortLow, true
	case ThinkingMedium:
		return shared.ReasoningEffortMedium, true
	case ThinkingHigh:
		return shared.ReasoningEffortHigh, true
	default:
		return "", false
	}
}
