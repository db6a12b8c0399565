package generation

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/recall/internal/domain"
)

// Throttled limits the rate of model calls.
type Throttled struct {
	inner   domain.Generator
	limiter *rate.Limiter
	model   string
}

// NewThrottled wraps inner with a token bucket of perSec requests and the given burst.
// perSec <= 0 disables limiting.
func NewThrottled(inner domain.Generator, model string, perSec float64, burst int) *Throttled {
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{inner: inner, limiter: rate.NewLimiter(limit, burst), model: model}
}

// Generate waits for a slot, then delegates. A wait cut short by ctx is ErrModelUnavailable.
func (t *Throttled) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResult, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return domain.GenerateResult{}, domain.NewModelError(domain.ErrModelUnavailable, t.model, "rate limit wait: "+err.Error())
	}
	return t.inner.Generate(ctx, req)
}
