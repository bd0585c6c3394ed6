package ai

import (
	"context"

	"github.com/fpt/klein-bot/internal/config"
)

// NewGenerator builds the configured backend with per-user history.
func NewGenerator(ctx context.Context, settings config.AISettings) (*Conversation, error) {
	backend, err := NewBackend(ctx, settings)
	if err != nil {
		return nil, err
	}
	return NewConversation(backend, NewHistory(settings.HistoryTurns), settings.SystemPrompt), nil
}

// NewBackend selects a backend by name. Unknown names use Gemini.
func NewBackend(ctx context.Context, settings config.AISettings) (Backend, error) {
	switch settings.Backend {
	case "anthropic", "claude":
		return NewAnthropicBackend(settings.APIKey, settings.Model, settings.MaxTokens)
	case "openai":
		return NewOpenAIBackend(settings.APIKey, settings.Model, settings.MaxTokens)
	case "ollama":
		return NewOllamaBackend(settings.Model)
	default:
		return NewGeminiBackend(ctx, settings.APIKey, settings.Model, settings.MaxTokens)
	}
}
