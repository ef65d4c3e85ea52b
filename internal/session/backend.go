package session

import (
	"context"

	"github.com/ppiankov/factstrip/internal/explain"
	"github.com/ppiankov/factstrip/internal/model"
	"github.com/ppiankov/factstrip/internal/verify"
)

// explainingBackend adds an explanation to payloads that arrive without one.
// It runs inside the request deadline, before the result becomes visible.
type explainingBackend struct {
	next      verify.Backend
	explainer *explain.Service
}

func (b *explainingBackend) Verify(ctx context.Context, req model.VerificationRequest) (map[string]any, error) {
	payload, err := b.next.Verify(ctx, req)
	if err != nil {
		return nil, err
	}
	if v, ok := payload["explanation"]; ok && v != nil {
		return payload, nil
	}
	if payload == nil {
		payload = map[string]any{}
	}

	ex := b.explainer.Explain(ctx, req.Statement)
	payload["explanation"] = map[string]any{
		"step1": ex.Step1,
		"step2": ex.Step2,
		"step3": ex.Step3,
		"step4": ex.Step4,
	}
	return payload, nil
}
