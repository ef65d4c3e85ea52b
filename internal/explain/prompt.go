package explain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/factstrip/internal/model"
)

const explanationSystemPrompt = `You are a science communicator. For the statement you are given, explain in four short steps how one would check it.
Return EXACTLY this JSON object and nothing else:
{"step1": "what the statement claims", "step2": "what evidence exists", "step3": "what the evidence shows", "step4": "the conclusion"}
Each step is one or two sentences. Step 1 must quote the statement.`

const (
	explanationMaxTokens   = 600
	explanationTemperature = 0.3
	maxExplanationBytes    = 1 << 20
	defaultModelTimeout    = 30 * time.Second
)

func timeoutOrDefault(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultModelTimeout
	}
	return time.Duration(seconds) * time.Second
}

func userPrompt(fact string) string {
	return fmt.Sprintf("Statement: %q", fact)
}

// parseExplanation decodes a model's JSON answer. Step 1 and step 4 are required.
func parseExplanation(content string) (model.Explanation, error) {
	var ex model.Explanation
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &ex); err != nil {
		return model.Explanation{}, fmt.Errorf("parse explanation: %w", err)
	}
	if ex.Step1 == "" || ex.Step4 == "" {
		return model.Explanation{}, fmt.Errorf("incomplete explanation from model")
	}
	return ex, nil
}

// stripCodeFence removes a ```json fence some models wrap around JSON
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
