package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/factstrip/internal/model"
)

const (
	anthropicDefaultURL   = "https://api.anthropic.com"
	anthropicDefaultModel = "claude-3-5-haiku-latest"
	anthropicVersion      = "2023-06-01"
)

// AnthropicGenerator asks a Claude model through the Messages API
type AnthropicGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicGenerator creates a generator. The API key falls back to ANTHROPIC_API_KEY.
func NewAnthropicGenerator(cfg model.ExplainConfig, httpClient *http.Client) (*AnthropicGenerator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = anthropicDefaultModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &AnthropicGenerator{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      modelName,
		timeout:    timeoutOrDefault(cfg.TimeoutSeconds),
		httpClient: httpClient,
	}, nil
}

// Name returns the generator name
func (g *AnthropicGenerator) Name() string { return "anthropic" }

// Endpoint returns the Messages API base URL
func (g *AnthropicGenerator) Endpoint() string { return g.baseURL }

// Explain generates the four steps with one message
func (g *AnthropicGenerator) Explain(ctx context.Context, fact string) (model.Explanation, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(anthropicRequest{
		Model:       g.model,
		MaxTokens:   explanationMaxTokens,
		System:      explanationSystemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: userPrompt(fact)}},
		Temperature: explanationTemperature,
	})
	if err != nil {
		return model.Explanation{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return model.Explanation{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return model.Explanation{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxExplanationBytes))
	if err != nil {
		return model.Explanation{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return model.Explanation{}, fmt.Errorf("Anthropic API error (%d): %s - %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return model.Explanation{}, fmt.Errorf("Anthropic API error (%d)", resp.StatusCode)
	}

	var ar anthropicResponse
	if err := json.Unmarshal(respBody, &ar); err != nil {
		return model.Explanation{}, fmt.Errorf("unmarshal response: %w", err)
	}
	for _, c := range ar.Content {
		if c.Type == "text" || c.Type == "" {
			return parseExplanation(c.Text)
		}
	}
	return model.Explanation{}, fmt.Errorf("no content in Anthropic response")
}
