package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/factstrip/internal/model"
)

// ExplanationPath is the explanation route on the backend
const ExplanationPath = "/api/generate-explanation"

// Client calls the backend's explanation endpoint
type Client struct {
	baseURL    string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client rooted at baseURL
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL:    baseURL,
		endpoint:   baseURL + ExplanationPath,
		httpClient: httpClient,
	}
}

// Name returns the generator name
func (c *Client) Name() string { return "endpoint" }

// Endpoint returns the backend base URL
func (c *Client) Endpoint() string { return c.baseURL }

type explanationResponse struct {
	Success     bool               `json:"success"`
	Explanation *model.Explanation `json:"explanation"`
	Error       string             `json:"error"`
}

// Explain posts {fact} and returns the explanation from a successful answer
func (c *Client) Explain(ctx context.Context, fact string) (model.Explanation, error) {
	body, err := json.Marshal(map[string]string{"fact": fact})
	if err != nil {
		return model.Explanation{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Explanation{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Explanation{}, fmt.Errorf("explanation request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxExplanationBytes))
	if err != nil {
		return model.Explanation{}, fmt.Errorf("read body: %w", err)
	}

	var out explanationResponse
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && out.Error != "" {
			return model.Explanation{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, out.Error)
		}
		return model.Explanation{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return model.Explanation{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	if !out.Success {
		if out.Error == "" {
			out.Error = "explanation not generated"
		}
		return model.Explanation{}, errors.New(out.Error)
	}
	if out.Explanation == nil || *out.Explanation == (model.Explanation{}) {
		return model.Explanation{}, errors.New("response carried no explanation")
	}
	return *out.Explanation, nil
}
