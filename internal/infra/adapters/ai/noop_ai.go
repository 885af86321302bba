package ai

import (
	"context"
	"time"

	"vidboost/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter stands in for the real model in local/dev runs: it echoes a
// canned reply and never calls tools.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{}
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop-model"}, nil
}

func (a *NoopAIAdapter) Generate(ctx context.Context, req adapter.GenerateRequest) (adapter.GenerateResult, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return adapter.GenerateResult{}, ctx.Err()
	}
	return adapter.GenerateResult{Text: "This is a canned development reply."}, nil
}

func (a *NoopAIAdapter) StreamGenerate(ctx context.Context, req adapter.GenerateRequest, onChunk func(string) error) (adapter.GenerateResult, error) {
	result, err := a.Generate(ctx, req)
	if err != nil {
		return adapter.GenerateResult{}, err
	}
	if onChunk != nil {
		if err := onChunk(result.Text); err != nil {
			return adapter.GenerateResult{}, err
		}
	}
	return result, nil
}
