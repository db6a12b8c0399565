package recall

import (
	"context"
	"errors"

	"github.com/kailas-cloud/recall/internal/domain"
)

// Generator produces text from a system instruction and a user prompt.
// Required for Ask; Search works without it.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// GenerateRequest is a single-turn prompt.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// GenerateResult carries the generated text and token counts.
type GenerateResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// generatorAdapter wraps a public Generator to satisfy domain.Generator.
// Errors that are not already classified become ErrModelUnavailable.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResult, error) {
	r, err := a.inner.Generate(ctx, GenerateRequest{
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		var me *domain.ModelError
		if errors.As(err, &me) {
			return domain.GenerateResult{}, err
		}
		return domain.GenerateResult{}, &domain.ModelError{
			Kind:   classify(err),
			Detail: err.Error(),
		}
	}
	return domain.GenerateResult{
		Text:         r.Text,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
	}, nil
}

func classify(err error) error {
	for _, kind := range []error{
		domain.ErrModelPermission,
		domain.ErrModelInvalidRequest,
		domain.ErrModelQuotaExceeded,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return domain.ErrModelUnavailable
}

// noopGenerator fails every call (used when no generator is configured).
type noopGenerator struct{}

func (noopGenerator) Generate(_ context.Context, _ domain.GenerateRequest) (domain.GenerateResult, error) {
	return domain.GenerateResult{}, domain.NewModelError(
		domain.ErrModelInvalidRequest, "", "recall: generator not configured (use WithGenerator)",
	)
}
