package domain

import "context"

type modelUsageKey struct{}

// ModelUsage collects token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the service;
// the generator chain writes after the model call; the handler reads it for response headers.
type ModelUsage struct {
	TotalTokens int
	Used        bool // true if the model was consulted, even on a cache hit with 0 tokens
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *ModelUsage) {
	u := &ModelUsage{}
	return context.WithValue(ctx, modelUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *ModelUsage {
	u, _ := ctx.Value(modelUsageKey{}).(*ModelUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *ModelUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}
