package ai

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiBackend calls the Gemini API.
type GeminiBackend struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGeminiBackend uses apiKey, or GEMINI_API_KEY when empty.
func NewGeminiBackend(ctx context.Context, apiKey, model string, maxTokens int) (*GeminiBackend, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Gemini client")
	}
	return &GeminiBackend{client: client, model: geminiModel(model), maxTokens: maxTokens}, nil
}

func geminiModel(model string) string {
	switch model {
	case "", "flash", "gemini-flash":
		return defaultGeminiModel
	case "pro", "gemini-pro":
		return "gemini-2.5-pro"
	case "lite", "gemini-lite":
		return "gemini-2.5-flash-lite"
	default:
		return model
	}
}

// geminiContents maps history turns to Gemini contents.
func geminiContents(turns []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		var role genai.Role = genai.RoleUser
		if t.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return contents
}

func (b *GeminiBackend) Name() string { return "gemini" }

func (b *GeminiBackend) Complete(ctx context.Context, system string, turns []Turn) (string, error) {
	contents := geminiContents(turns)

	config := &genai.GenerateContentConfig{}
	if b.maxTokens > 0 {
		config.MaxOutputTokens = int32(b.maxTokens)
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, config)
	if err != nil {
		return "", errors.Wrap(err, "Gemini API call failed")
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("no response from Gemini")
	}
	return resp.Text(), nil
}
