package ai

import (
	"context"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
)

const defaultOllamaModel = "llama3.2"

// OllamaBackend calls a local Ollama server located by OLLAMA_HOST.
type OllamaBackend struct {
	client *api.Client
	model  string
}

func NewOllamaBackend(model string) (*OllamaBackend, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Ollama client")
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaBackend{client: client, model: model}, nil
}

func (b *OllamaBackend) Name() string { return "ollama" }

func (b *OllamaBackend) Complete(ctx context.Context, system string, turns []Turn) (string, error) {
	messages := make([]api.Message, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, api.Message{Role: "system", Content: system})
	}
	for _, t := range turns {
		role := "user"
		if t.Role == RoleModel {
			role = "assistant"
		}
		messages = append(messages, api.Message{Role: role, Content: t.Text})
	}

	var sb strings.Builder
	err := b.client.Chat(ctx, &api.ChatRequest{Model: b.model, Messages: messages}, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "Ollama chat failed")
	}
	return sb.String(), nil
}
