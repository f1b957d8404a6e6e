package adapter

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 8192

// Thinking budgets for Claude extended thinking.
const (
	anthropicBudgetLow    = 2048
	anthropicBudgetMedium = 8192
	anthropicBudgetHigh   = 16384
)

// AnthropicAdapter implements the Adapter interface for Claude models.
type AnthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter(apiKey string) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// Models returns the list of supported Claude models.
func (a *AnthropicAdapter) Models() []string {
	return []string{
		"claude-sonnet-4-20250514",
		"claude-opus-4-20250514",
	}
}

// Generate sends a prompt to Claude and returns the assembled response.
func (a *AnthropicAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		block, err := anthropicAttachmentBlock(att)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	}
	if budget, ok := anthropicThinkingBudget(req.ThinkingLevel); ok {
		// Extended thinking rejects explicit temperature overrides.
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(budget))
	} else {
		params.Temperature = anthropic.Float(req.Temperature)
		if req.TopP != nil {
			params.TopP = anthropic.Float(*req.TopP)
		}
		if req.TopK != nil {
			params.TopK = anthropic.Int(int64(*req.TopK))
		}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	usage := Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	return &Response{
		Text:  content.String(),
		Model: req.Model,
		Usage: usage,
	}, nil
}

func anthropicAttachmentBlock(att Attachment) (anthropic.ContentBlockParamUnion, error) {
	encoded := base64.StdEncoding.EncodeToString(att.Data)
	switch {
	case att.MIMEType == "application/pdf":
		return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
			Data: encoded,
		}), nil
	case strings.HasPrefix(att.MIMEType, "image/"):
		return anthropic.NewImageBlockBase64(att.MIMEType, encoded), nil
	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("anthropic adapter does not support attachment type %s", att.MIMEType)
	}
}

func anthropicThinkingBudget(level ThinkingLevel) (int, bool) {
	switch level {
	case ThinkingLow:
		return anthropicBudgetLow, true
	case ThinkingMedium:
		return anthropicBudgetMedium, true
	case ThinkingHigh:
		return anthropicBudgetHigh, true
	default:
		return 0, false
	}
}
