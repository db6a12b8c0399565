// Package index builds searchable snapshots of the corpus and queries them.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
	"github.com/kailas-cloud/recall/internal/ngram"
)

// Build outcomes reported in metrics.
const (
	OutcomeReady = "ready"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Builder rebuilds the index and publishes the result with a single atomic store.
// Readers holding an older snapshot keep using it until they finish.
type Builder struct {
	loader     Loader
	splitter   Splitter
	vectorizer ngram.Vectorizer
	timeout    time.Duration
	logger     *zap.Logger

	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

// NewBuilder creates a Builder with an installed empty snapshot.
func NewBuilder(
	loader Loader, splitter Splitter, vectorizer ngram.Vectorizer,
	timeout time.Duration, logger *zap.Logger,
) *Builder {
	b := &Builder{
		loader:     loader,
		splitter:   splitter,
		vectorizer: vectorizer,
		timeout:    timeout,
		logger:     logger,
	}
	b.current.Store(&Snapshot{ID: uuid.NewString(), Reason: "index has not been built"})
	return b
}

// Current returns the installed snapshot. Never nil.
func (b *Builder) Current() *Snapshot {
	return b.current.Load()
}

// Build loads, chunks and vectorizes the corpus, then installs the result.
// Concurrent calls share one rebuild. A build that fails or finds nothing
// still installs a not-ready snapshot, except when ctx is cancelled, in
// which case the previous snapshot stays in place.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	ch := b.group.DoChan("build", func() (any, error) {
		// the shared rebuild outlives any single caller
		bctx := context.WithoutCancel(ctx)
		if b.timeout > 0 {
			var cancel context.CancelFunc
			bctx, cancel = context.WithTimeout(bctx, b.timeout)
			defer cancel()
		}
		return b.build(bctx)
	})

	select {
	case <-ctx.Done():
		return b.Current(), ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return b.Current(), res.Err
		}
		return res.Val.(*Snapshot), nil //nolint:forcetypeassert // only *Snapshot is returned
	}
}

func (b *Builder) build(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	log := b.logger.With(zap.String("op", "index_build"))
	log.Info("Building index")

	docs, stats, err := b.loader.Load(ctx)
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues(OutcomeError).Inc()
		log.Error("Corpus load aborted", zap.Error(err))
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	snap := &Snapshot{ID: uuid.NewString(), BuiltAt: time.Now().UTC()}
	files := 0
	for _, doc := range docs {
		chunks := b.splitter.Chunks(doc.Content)
		if len(chunks) == 0 {
			log.Warn("No chunks generated", zap.String("file", doc.Key))
			continue
		}
		files++
		for i, text := range chunks {
			snap.Texts = append(snap.Texts, text)
			snap.Meta = append(snap.Meta, domain.ChunkMeta{File: doc.Key, ChunkID: i})
		}
	}
	snap.Files = files

	outcome := OutcomeReady
	switch {
	case len(snap.Texts) == 0:
		outcome = OutcomeEmpty
		snap.Reason = "corpus is empty"
		log.Warn("Corpus is empty, nothing to index", zap.Int("objects_loaded", stats.Loaded))
	default:
		model, fitErr := b.vectorizer.Fit(snap.Texts)
		if fitErr != nil {
			outcome = OutcomeError
			if errors.Is(fitErr, domain.ErrEmptyVocabulary) {
				outcome = OutcomeEmpty
			}
			snap.Reason = fitErr.Error()
			log.Error("Vectorizer fit failed", zap.Error(fitErr))
			break
		}
		snap.model = model
	}

	b.current.Store(snap)

	duration := time.Since(start)
	rows, cols := snap.Shape()
	metrics.IndexRebuildsTotal.WithLabelValues(outcome).Inc()
	metrics.IndexBuildDuration.Observe(duration.Seconds())
	metrics.IndexChunks.Set(float64(rows))

	log.Info("Index installed",
		zap.String("snapshot_id", snap.ID),
		zap.String("outcome", outcome),
		zap.Int("files", files),
		zap.Int("chunks", len(snap.Texts)),
		zap.Int("rows", rows),
		zap.Int("cols", cols),
		zap.Duration("duration", duration),
	)
	return snap, nil
}
