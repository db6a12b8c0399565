package chi

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	queryuc "github.com/kailas-cloud/recall/internal/usecase/query"
)

// QueryService answers questions and manages the index.
type QueryService interface {
	Ask(ctx context.Context, question string, topK int) (domain.Answer, error)
	Search(ctx context.Context, query string, topK int) ([]domain.Passage, error)
	Reload(ctx context.Context) (queryuc.Status, error)
}

// HealthService reports service state.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// CaptureController starts and stops the capture process.
type CaptureController interface {
	Start(ctx context.Context) (int, error)
	Stop(ctx context.Context) (int, error)
}
