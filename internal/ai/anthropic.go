package ai

import (
	"context"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicBackend calls the Claude Messages API.
type AnthropicBackend struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicBackend uses apiKey, or ANTHROPIC_API_KEY when empty.
func NewAnthropicBackend(apiKey, model string, maxTokens int) (*AnthropicBackend, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicBackend{client: &client, model: model, maxTokens: maxTokens}, nil
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

func (b *AnthropicBackend) Complete(ctx context.Context, system string, turns []Turn) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleModel {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		}
	}

	params := anthropic.MessageNewParams{
		MaxTokens: int64(b.maxTokens),
		Messages:  messages,
		Model:     anthropic.Model(b.model),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "Anthropic API call failed")
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String(), nil
}
