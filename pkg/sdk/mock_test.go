package recall

import (
	"context"
	"sync/atomic"
)

// --- Generator mock ---

type mockGenerator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	m.calls.Add(1)
	return m.fn(ctx, req)
}

// --- Source mock ---

type mockSource struct {
	fn func(ctx context.Context) ([]Document, error)
}

func (m *mockSource) Documents(ctx context.Context) ([]Document, error) {
	return m.fn(ctx)
}

func fixedAnswer(text string) *mockGenerator {
	return &mockGenerator{fn: func(_ context.Context, _ GenerateRequest) (GenerateResult, error) {
		return GenerateResult{Text: text, InputTokens: 10, OutputTokens: 2}, nil
	}}
}
