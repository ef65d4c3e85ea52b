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

const ollamaDefaultURL = "http://localhost:11434"

// OllamaGenerator asks a local Ollama model
type OllamaGenerator struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaGenerator creates a generator. The base URL falls back to
// OLLAMA_BASE_URL, then the local default. A model must be named.
func NewOllamaGenerator(cfg model.ExplainConfig, httpClient *http.Client) (*OllamaGenerator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if baseURL == "" {
		baseURL = ollamaDefaultURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OllamaGenerator{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      cfg.Model,
		timeout:    timeoutOrDefault(cfg.TimeoutSeconds),
		httpClient: httpClient,
	}, nil
}

// Name returns the generator name
func (g *OllamaGenerator) Name() string { return "ollama" }

// Endpoint returns the Ollama server URL
func (g *OllamaGenerator) Endpoint() string { return g.baseURL }

// Explain generates the four steps with one non-streaming completion
func (g *OllamaGenerator) Explain(ctx context.Context, fact string) (model.Explanation, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaRequest{
		Model:  g.model,
		Prompt: userPrompt(fact),
		System: explanationSystemPrompt,
		Format: "json",
		Options: ollamaOptions{
			Temperature: explanationTemperature,
			NumPredict:  explanationMaxTokens,
		},
	})
	if err != nil {
		return model.Explanation{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return model.Explanation{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return model.Explanation{}, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return model.Explanation{}, fmt.Errorf("ollama API error (%d)", resp.StatusCode)
	}

	var or ollamaResponse
	if err := json.Unmarshal(respBody, &or); err != nil {
		return model.Explanation{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return parseExplanation(or.Response)
}
