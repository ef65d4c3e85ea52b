package explain

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/factstrip/internal/model"
)

// OpenAIGenerator asks an OpenAI chat model for the explanation directly
type OpenAIGenerator struct {
	client  *openai.Client
	baseURL string
	model   string
	timeout time.Duration
}

// NewOpenAIGenerator creates a generator. The API key falls back to OPENAI_API_KEY.
// A nil httpClient leaves the library default in place.
func NewOpenAIGenerator(cfg model.ExplainConfig, httpClient *http.Client) (*OpenAIGenerator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		baseURL: clientConfig.BaseURL,
		model:   modelName,
		timeout: timeoutOrDefault(cfg.TimeoutSeconds),
	}, nil
}

// Name returns the generator name
func (g *OpenAIGenerator) Name() string { return "openai" }

// Endpoint returns the API base URL
func (g *OpenAIGenerator) Endpoint() string { return g.baseURL }

// Explain generates the four steps with one chat completion
func (g *OpenAIGenerator) Explain(ctx context.Context, fact string) (model.Explanation, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: explanationSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(fact)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		MaxTokens:      explanationMaxTokens,
		Temperature:    explanationTemperature,
	})
	if err != nil {
		return model.Explanation{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Explanation{}, fmt.Errorf("no response from OpenAI")
	}

	return parseExplanation(resp.Choices[0].Message.Content)
}
