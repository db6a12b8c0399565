// Package generation decorates model generators with budget enforcement,
// observability and rate limiting.
package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	Remaining() (daily, monthly int64)
}

// InstrumentedGenerator wraps a Generator with budget enforcement and logging.
// Transport metrics (requests, duration, tokens) are recorded by the provider itself.
type InstrumentedGenerator struct {
	inner    domain.Generator
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedGenerator wraps a generator. budget may be nil.
func NewInstrumentedGenerator(
	inner domain.Generator, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedGenerator {
	return &InstrumentedGenerator{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Generate checks the budget, delegates, and records usage.
func (g *InstrumentedGenerator) Generate(
	ctx context.Context, req domain.GenerateRequest,
) (domain.GenerateResult, error) {
	if g.budget != nil {
		if err := g.budget.Check(ctx); err != nil {
			g.logger.Error("Budget exceeded",
				zap.String("provider", g.provider),
				zap.String("model", g.model),
				zap.Error(err),
			)
			metrics.ModelErrorsTotal.WithLabelValues(g.provider, g.model, "budget").Inc()
			return domain.GenerateResult{}, domain.NewModelError(err, g.model, "")
		}
	}

	start := time.Now()
	result, err := g.inner.Generate(ctx, req)
	duration := time.Since(start)

	if err != nil {
		g.logger.Error("Model request failed",
			zap.String("provider", g.provider),
			zap.String("model", g.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.GenerateResult{}, fmt.Errorf("generate: %w", err)
	}

	tokens := result.TotalTokens()
	domain.UsageFromContext(ctx).AddTokens(tokens)

	if g.budget != nil && tokens > 0 {
		g.budget.Record(int64(tokens))
		daily, monthly := g.budget.Remaining()
		metrics.ModelBudgetTokensRemaining.WithLabelValues(g.provider, "daily").Set(float64(daily))
		metrics.ModelBudgetTokensRemaining.WithLabelValues(g.provider, "monthly").Set(float64(monthly))
	}

	g.logger.Debug("Model request completed",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.Duration("duration", duration),
		zap.Int("input_tokens", result.InputTokens),
		zap.Int("output_tokens", result.OutputTokens),
	)
	return result, nil
}
