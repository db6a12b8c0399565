package recall

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/usecase/corpus"
)

// Source supplies the documents to index on every Reload.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// staticSource serves a fixed document list.
type staticSource []Document

func (s staticSource) Documents(_ context.Context) ([]Document, error) {
	return s, nil
}

// sourceLoader adapts a Source to the index loader. Invalid UTF-8 is
// dropped and blank documents are skipped, as for stored objects.
type sourceLoader struct {
	src Source
}

func (l *sourceLoader) Load(ctx context.Context) ([]domain.Document, corpus.LoadStats, error) {
	docs, err := l.src.Documents(ctx)
	if err != nil {
		return nil, corpus.LoadStats{}, fmt.Errorf("recall: load documents: %w", err)
	}

	stats := corpus.LoadStats{Listed: len(docs)}
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		content := strings.ToValidUTF8(d.Content, "")
		if strings.TrimSpace(content) == "" {
			stats.Skipped++
			continue
		}
		out = append(out, domain.Document{Key: d.Key, Content: content})
	}
	stats.Loaded = len(out)
	return out, stats, nil
}
