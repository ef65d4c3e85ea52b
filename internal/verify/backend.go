package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ppiankov/factstrip/internal/model"
)

// Backend performs one verification exchange and returns the raw payload
type Backend interface {
	Verify(ctx context.Context, req model.VerificationRequest) (map[string]any, error)
}

// GeneratePath is the verification route on the backend
const GeneratePath = "/api/generate"

// comic images come back inline as data URIs
const maxResponseBytes = 32 << 20

// HTTPBackend talks to the verification service over HTTP
type HTTPBackend struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
}

// NewHTTPBackend creates a backend rooted at baseURL
func NewHTTPBackend(baseURL string, httpClient *http.Client, userAgent string) *HTTPBackend {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPBackend{
		endpoint:   strings.TrimRight(baseURL, "/") + GeneratePath,
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// Verify posts {statement, style} and decodes the JSON object that comes back
func (b *HTTPBackend) Verify(ctx context.Context, vr model.VerificationRequest) (map[string]any, error) {
	body, err := json.Marshal(vr)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	payload, decodeErr := decodeObject(data)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServerFailure{StatusCode: resp.StatusCode, Message: errorMessage(payload)}
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if success, ok := payload["success"].(bool); ok && !success {
		return nil, &ServerFailure{StatusCode: resp.StatusCode, Message: errorMessage(payload)}
	}

	return payload, nil
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: null body", ErrMalformedResponse)
	}
	return payload, nil
}

func errorMessage(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	for _, k := range []string{"error", "message"} {
		if s, ok := payload[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
