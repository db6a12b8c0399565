package query

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/usecase/index"
)

// Index exposes the installed snapshot and rebuilds it.
type Index interface {
	Current() *index.Snapshot
	Build(ctx context.Context) (*index.Snapshot, error)
}

// Retriever ranks snapshot rows against a query.
type Retriever interface {
	Search(snap *index.Snapshot, query string, topK int) []domain.Hit
}

// Answerer produces a grounded answer from passage texts.
type Answerer interface {
	Answer(ctx context.Context, question string, passages []string) (string, error)
}
