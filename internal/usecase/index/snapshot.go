package index

import (
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/ngram"
)

// Snapshot is an immutable, self-consistent index generation: chunk texts,
// their provenance and the fitted vector space are always replaced together.
type Snapshot struct {
	ID      string
	BuiltAt time.Time
	Texts   []string
	Meta    []domain.ChunkMeta
	Files   int
	// Reason explains why a snapshot is not ready.
	Reason string

	model *ngram.Model
}

// Ready reports whether the snapshot can answer searches.
func (s *Snapshot) Ready() bool {
	if s == nil || s.model == nil {
		return false
	}
	rows, _ := s.model.Shape()
	return rows > 0
}

// Len returns the number of indexed chunks.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Texts)
}

// Shape returns (chunks, vocabulary size), or (0, 0) when not ready.
func (s *Snapshot) Shape() (rows, cols int) {
	if !s.Ready() {
		return 0, 0
	}
	return s.model.Shape()
}

// Chunk returns the chunk at row i.
func (s *Snapshot) Chunk(i int) domain.Chunk {
	return domain.Chunk{ChunkMeta: s.Meta[i], Text: s.Texts[i]}
}
