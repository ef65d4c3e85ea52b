// Package explain produces the four-step explanation shown with a verdict.
package explain

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/factstrip/internal/model"
)

// Generator computes an explanation for a statement
type Generator interface {
	Name() string
	Explain(ctx context.Context, fact string) (model.Explanation, error)
}

// Endpointer is implemented by generators that talk to one HTTP base URL
type Endpointer interface {
	Endpoint() string
}

// Fallback is the deterministic explanation used whenever generation fails.
// Step 1 always quotes the statement verbatim.
func Fallback(fact string) model.Explanation {
	return model.Explanation{
		Step1: fmt.Sprintf("Let's examine: %s", fact),
		Step2: "Researching the scientific evidence...",
		Step3: "Analyzing the findings...",
		Step4: "Conclusion based on evidence...",
	}
}

// Service wraps a Generator so that callers always get an explanation.
// Concurrent requests for the same statement share one generation.
type Service struct {
	gen     Generator
	group   singleflight.Group
	timeout time.Duration
	logger  *zap.Logger
}

// NewService creates a service. A nil generator always yields Fallback.
func NewService(gen Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, timeout: defaultModelTimeout, logger: logger.Named("explain")}
}

// SetTimeout bounds one shared generation. Non-positive values keep the default.
func (s *Service) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Explain returns a generated explanation, or Fallback(fact) on any failure.
// A caller that gives up gets Fallback without ending the generation for
// the others waiting on it.
func (s *Service) Explain(ctx context.Context, fact string) model.Explanation {
	if s.gen == nil {
		return Fallback(fact)
	}

	ch := s.group.DoChan(fact, func() (any, error) {
		// detached from the first caller; only the timeout ends it
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.gen.Explain(genCtx, fact)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			s.logger.Warn("explanation generation failed, using fallback",
				zap.String("generator", s.gen.Name()),
				zap.Error(res.Err))
			return Fallback(fact)
		}
		if res.Shared {
			s.logger.Debug("explanation shared with concurrent request")
		}
		return res.Val.(model.Explanation)
	case <-ctx.Done():
		s.logger.Debug("explanation abandoned by caller", zap.Error(ctx.Err()))
		return Fallback(fact)
	}
}

// Compute has the shape history.ExplainFunc expects. It never fails.
func (s *Service) Compute(ctx context.Context, fact string) (model.Explanation, error) {
	return s.Explain(ctx, fact), nil
}

// NewGenerator creates the generator selected by cfg.Provider.
// backendURL is used when cfg.URL is empty. A nil generator means fallback only.
func NewGenerator(cfg model.ExplainConfig, backendURL string, httpClient *http.Client) (Generator, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "", "endpoint":
		base := cfg.URL
		if base == "" {
			base = backendURL
		}
		if base == "" {
			return nil, fmt.Errorf("explain.url or backend.url is required for the endpoint provider")
		}
		return NewClient(base, httpClient), nil

	case "openai":
		return NewOpenAIGenerator(cfg, httpClient)

	case "anthropic", "claude":
		return NewAnthropicGenerator(cfg, httpClient)

	case "ollama":
		return NewOllamaGenerator(cfg, httpClient)

	case "fallback", "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown explanation provider: %s (supported: endpoint, openai, anthropic, ollama, fallback)", cfg.Provider)
	}
}
