// Package query answers questions over the current index snapshot.
package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/usecase/index"
)

const (
	// DefaultTopK is used when the caller does not ask for a specific count.
	DefaultTopK = 5
	// DefaultMaxTopK is the upper clamp for topK.
	DefaultMaxTopK = 20
	// DefaultMaxPassages is the number of passages handed to the model.
	DefaultMaxPassages = 3

	notFoundFormat   = "Information about “%s” was not mentioned in the context."
	modelErrorFormat = "Error generating AI response: %s"
)

// Config bounds retrieval.
type Config struct {
	MaxTopK     int
	MaxPassages int
}

// Status describes the installed snapshot.
type Status struct {
	Ready      bool
	Chunks     int
	Files      int
	Rows       int
	Cols       int
	SnapshotID string
	BuiltAt    time.Time
}

// Service runs retrieval and grounded answering.
type Service struct {
	idx      Index
	retr     Retriever
	answerer Answerer
	cfg      Config
}

// New creates a query service.
func New(idx Index, retr Retriever, answerer Answerer, cfg Config) *Service {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = DefaultMaxTopK
	}
	if cfg.MaxPassages <= 0 {
		cfg.MaxPassages = DefaultMaxPassages
	}
	return &Service{idx: idx, retr: retr, answerer: answerer, cfg: cfg}
}

// Ask retrieves up to topK passages (clamped to [1, MaxTopK]) and answers from the best of them.
// A model failure is not an error: the passages are returned with a failure message as the answer.
func (s *Service) Ask(ctx context.Context, question string, topK int) (domain.Answer, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return domain.Answer{}, domain.ErrEmptyQuestion
	}

	log := logger.FromContext(ctx)
	snap := s.idx.Current()
	if !snap.Ready() {
		log.Warn("Index not ready, cannot answer", zap.String("reason", snap.Reason))
		return domain.Answer{}, domain.ErrIndexNotReady
	}

	passages := s.retrieve(snap, q, topK)
	if len(passages) == 0 {
		log.Info("No relevant passages found")
		return domain.Answer{Answer: notFound(q), Passages: passages}, nil
	}

	texts := make([]string, 0, s.cfg.MaxPassages)
	for _, p := range passages[:min(len(passages), s.cfg.MaxPassages)] {
		texts = append(texts, p.Text)
	}

	ans, err := s.answerer.Answer(ctx, q, texts)
	if err != nil {
		log.Error("Model call failed", zap.Error(err))
		return domain.Answer{Answer: fmt.Sprintf(modelErrorFormat, modelErrorMessage(err)), Passages: passages}, nil
	}
	if ans == "" {
		ans = notFound(q)
	}
	return domain.Answer{Answer: ans, Passages: passages}, nil
}

// Search returns the ranked passages without calling the model.
func (s *Service) Search(_ context.Context, query string, topK int) ([]domain.Passage, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, domain.ErrEmptyQuestion
	}
	snap := s.idx.Current()
	if !snap.Ready() {
		return nil, domain.ErrIndexNotReady
	}
	return s.retrieve(snap, q, topK), nil
}

// Reload rebuilds the index synchronously and reports the new state.
func (s *Service) Reload(ctx context.Context) (Status, error) {
	snap, err := s.idx.Build(ctx)
	if err != nil {
		return statusOf(snap), fmt.Errorf("rebuild index: %w", err)
	}
	return statusOf(snap), nil
}

// Status reports the installed snapshot.
func (s *Service) Status() Status {
	return statusOf(s.idx.Current())
}

// ClampTopK limits k to [1, max].
func ClampTopK(k, maxK int) int {
	return max(1, min(k, maxK))
}

func (s *Service) retrieve(snap *index.Snapshot, q string, topK int) []domain.Passage {
	hits := s.retr.Search(snap, q, ClampTopK(topK, s.cfg.MaxTopK))
	passages := make([]domain.Passage, 0, len(hits))
	for _, h := range hits {
		if h.Index < 0 || h.Index >= snap.Len() {
			continue
		}
		c := snap.Chunk(h.Index)
		passages = append(passages, domain.Passage{
			File:    c.File,
			ChunkID: c.ChunkID,
			Score:   round6(h.Score),
			Text:    c.Text,
		})
	}
	return passages
}

func statusOf(snap *index.Snapshot) Status {
	if snap == nil {
		return Status{}
	}
	rows, cols := snap.Shape()
	return Status{
		Ready:      snap.Ready(),
		Chunks:     snap.Len(),
		Files:      snap.Files,
		Rows:       rows,
		Cols:       cols,
		SnapshotID: snap.ID,
		BuiltAt:    snap.BuiltAt,
	}
}

func notFound(q string) string {
	return fmt.Sprintf(notFoundFormat, q)
}

func modelErrorMessage(err error) string {
	var me *domain.ModelError
	if errors.As(err, &me) {
		return me.Error()
	}
	return err.Error()
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
