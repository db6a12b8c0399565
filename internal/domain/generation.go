package domain

import "context"

// Generator is the shared text generation contract between layers.
// Implementations return *ModelError for every inference failure.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// HealthChecker verifies a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// GenerateRequest is a single-turn prompt.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// GenerateResult carries the generated text and token usage through the decorator chain.
type GenerateResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// TotalTokens returns input plus output tokens.
func (r GenerateResult) TotalTokens() int { return r.InputTokens + r.OutputTokens }
