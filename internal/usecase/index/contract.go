package index

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/usecase/corpus"
)

// Loader supplies the documents to index.
type Loader interface {
	Load(ctx context.Context) ([]domain.Document, corpus.LoadStats, error)
}

// Splitter cuts a document into chunk texts.
type Splitter interface {
	Chunks(text string) []string
}
