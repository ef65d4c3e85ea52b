package explain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factstrip/internal/model"
)

const fact = "Bees communicate by dance"

func TestFallback_QuotesStatement(t *testing.T) {
	ex := Fallback(fact)
	assert.Contains(t, ex.Step1, fact)
	assert.Equal(t, ex, Fallback(fact), "fallback must be deterministic")
	for i, step := range ex.Steps() {
		assert.NotEmpty(t, step, "step %d", i+1)
	}
}

func TestClient_Explain_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ExplanationPath, r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, fact, body["fact"])

		_, _ = w.Write([]byte(`{"success":true,"fact":"x","explanation":{"step1":"a","step2":"b","step3":"c","step4":"d"}}`))
	}))
	defer server.Close()

	ex, err := NewClient(server.URL, server.Client()).Explain(context.Background(), fact)
	require.NoError(t, err)
	assert.Equal(t, model.Explanation{Step1: "a", Step2: "b", Step3: "c", Step4: "d"}, ex)
}

func TestClient_Explain_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"success false", http.StatusOK, `{"success":false,"error":"Failed to generate explanation"}`},
		{"500", http.StatusInternalServerError, `{"success":false,"error":"boom"}`},
		{"400 no fact", http.StatusBadRequest, `{"error":"No fact provided"}`},
		{"missing explanation", http.StatusOK, `{"success":true}`},
		{"not json", http.StatusOK, `<html></html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, server.Client())
			_, err := client.Explain(context.Background(), fact)
			assert.Error(t, err)

			// the service never surfaces the failure
			ex := NewService(client, nil).Explain(context.Background(), fact)
			assert.Equal(t, Fallback(fact), ex)
		})
	}
}

func TestService_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	svc := NewService(NewClient(url, nil), nil)
	ex, err := svc.Compute(context.Background(), fact)
	require.NoError(t, err)
	assert.Equal(t, Fallback(fact), ex)
}

func TestService_NilGenerator(t *testing.T) {
	assert.Equal(t, Fallback(fact), NewService(nil, nil).Explain(context.Background(), fact))
}

// slowGenerator counts calls and blocks until released
type slowGenerator struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *slowGenerator) Name() string { return "slow" }

func (g *slowGenerator) Explain(ctx context.Context, fact string) (model.Explanation, error) {
	g.calls.Add(1)
	<-g.release
	return model.Explanation{Step1: fact, Step2: "2", Step3: "3", Step4: "4"}, nil
}

func TestService_CollapsesConcurrentRequests(t *testing.T) {
	gen := &slowGenerator{release: make(chan struct{})}
	svc := NewService(gen, nil)

	var wg sync.WaitGroup
	started := make(chan struct{}, 5)
	results := make([]model.Explanation, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			results[i] = svc.Explain(context.Background(), fact)
		}(i)
	}
	for range results {
		<-started
	}

	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	assert.Equal(t, int32(1), gen.calls.Load())
	for _, r := range results {
		assert.Equal(t, fact, r.Step1)
	}
}

// ctxGenerator blocks until released or until its own ctx ends
type ctxGenerator struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *ctxGenerator) Name() string { return "ctx" }

func (g *ctxGenerator) Explain(ctx context.Context, fact string) (model.Explanation, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	select {
	case <-g.release:
		return model.Explanation{Step1: fact, Step2: "2", Step3: "3", Step4: "4"}, nil
	case <-ctx.Done():
		return model.Explanation{}, ctx.Err()
	}
}

func TestService_FirstCallerCancelDoesNotFailOthers(t *testing.T) {
	gen := &ctxGenerator{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(gen, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	first := make(chan model.Explanation, 1)
	go func() { first <- svc.Explain(firstCtx, fact) }()
	<-gen.started

	second := make(chan model.Explanation, 1)
	go func() { second <- svc.Explain(context.Background(), fact) }()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.Equal(t, Fallback(fact), <-first, "a caller that gives up gets the fallback")

	close(gen.release)
	got := <-second
	assert.Equal(t, fact, got.Step1)
	assert.Equal(t, "4", got.Step4)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestService_SharedGenerationIsBounded(t *testing.T) {
	gen := &ctxGenerator{started: make(chan struct{}), release: make(chan struct{})}
	defer close(gen.release)

	svc := NewService(gen, nil)
	svc.SetTimeout(20 * time.Millisecond)

	start := time.Now()
	assert.Equal(t, Fallback(fact), svc.Explain(context.Background(), fact))
	assert.Less(t, time.Since(start), time.Second)
}

type erroringGenerator struct{}

func (erroringGenerator) Name() string { return "broken" }

func (erroringGenerator) Explain(context.Context, string) (model.Explanation, error) {
	return model.Explanation{}, errors.New("exploded")
}

func TestService_GeneratorErrorFallsBack(t *testing.T) {
	assert.Equal(t, Fallback(fact), NewService(erroringGenerator{}, nil).Explain(context.Background(), fact))
}

func openAIServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}
		resp := openai.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIGenerator_Explain(t *testing.T) {
	server := openAIServer(t, "```json\n{\"step1\":\"Claim: bees dance\",\"step2\":\"b\",\"step3\":\"c\",\"step4\":\"d\"}\n```")
	defer server.Close()

	gen, err := NewOpenAIGenerator(model.ExplainConfig{APIKey: "test-key", BaseURL: server.URL, TimeoutSeconds: 5}, server.Client())
	require.NoError(t, err)

	ex, err := gen.Explain(context.Background(), fact)
	require.NoError(t, err)
	assert.Equal(t, "Claim: bees dance", ex.Step1)
	assert.Equal(t, "d", ex.Step4)
}

func TestOpenAIGenerator_Incomplete(t *testing.T) {
	server := openAIServer(t, `{"step1":"only one"}`)
	defer server.Close()

	gen, err := NewOpenAIGenerator(model.ExplainConfig{APIKey: "test-key", BaseURL: server.URL}, nil)
	require.NoError(t, err)

	_, err = gen.Explain(context.Background(), fact)
	assert.Error(t, err)
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(model.ExplainConfig{Provider: "endpoint"}, "http://127.0.0.1:5000", nil)
	require.NoError(t, err)
	assert.Equal(t, "endpoint", gen.Name())
	assert.Equal(t, "http://127.0.0.1:5000", gen.(Endpointer).Endpoint())

	gen, err = NewGenerator(model.ExplainConfig{Provider: "openai", APIKey: "k"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", gen.(Endpointer).Endpoint())

	gen, err = NewGenerator(model.ExplainConfig{Provider: "fallback"}, "", nil)
	require.NoError(t, err)
	assert.Nil(t, gen)

	t.Setenv("OPENAI_API_KEY", "")
	_, err = NewGenerator(model.ExplainConfig{Provider: "openai"}, "", nil)
	assert.Error(t, err)

	_, err = NewGenerator(model.ExplainConfig{Provider: "oracle"}, "", nil)
	assert.True(t, err != nil && strings.Contains(err.Error(), "unknown explanation provider"))
}
