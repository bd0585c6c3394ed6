package ai

import (
	"context"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/responses"
	"github.com/openai/openai-go/v2/shared"
	"github.com/pkg/errors"
)

const defaultOpenAIModel = "gpt-4.1-mini"

// OpenAIBackend calls the Responses API.
type OpenAIBackend struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIBackend uses apiKey, or OPENAI_API_KEY when empty. OPENAI_BASE_URL
// selects a compatible endpoint.
func NewOpenAIBackend(apiKey, model string, maxTokens int) (*OpenAIBackend, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIBackend{client: &client, model: model, maxTokens: maxTokens}, nil
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Complete(ctx context.Context, system string, turns []Turn) (string, error) {
	var items responses.ResponseInputParam
	if system != "" {
		items = append(items, responses.ResponseInputItemParamOfMessage(system, responses.EasyInputMessageRoleSystem))
	}
	for _, t := range turns {
		role := responses.EasyInputMessageRoleUser
		if t.Role == RoleModel {
			role = responses.EasyInputMessageRoleAssistant
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(t.Text, role))
	}

	params := responses.ResponseNewParams{
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
		Model: shared.ChatModel(b.model),
	}
	if b.maxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(b.maxTokens))
	}

	resp, err := b.client.Responses.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "Responses API call failed")
	}
	return resp.OutputText(), nil
}
