package index

import (
	"sort"

	"github.com/kailas-cloud/recall/internal/domain"
)

// DefaultMinScore drops near-zero matches.
const DefaultMinScore = 0.01

// Retriever ranks snapshot rows against a query by cosine similarity.
type Retriever struct {
	minScore float64
}

// NewRetriever creates a retriever. Scores must be strictly greater than minScore to be returned.
func NewRetriever(minScore float64) *Retriever {
	return &Retriever{minScore: minScore}
}

// Search returns at most topK hits in descending score order; equal scores
// keep row order. A not-ready snapshot or topK <= 0 yields nil.
func (r *Retriever) Search(snap *Snapshot, query string, topK int) []domain.Hit {
	if !snap.Ready() || topK <= 0 {
		return nil
	}

	q := snap.model.Transform(query)
	if q.Len() == 0 {
		return nil
	}

	rows := snap.model.Rows()
	hits := make([]domain.Hit, 0, len(rows))
	for i, row := range rows {
		score := q.Dot(row)
		if score > r.minScore {
			hits = append(hits, domain.Hit{Score: score, Index: i})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
