// Package corpus loads the text documents that make up the searchable corpus.
package corpus

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

const (
	textSuffix         = ".txt"
	defaultConcurrency = 8
)

// Skip reasons reported in metrics.
const (
	SkipNotText = "not_text"
	SkipEmpty   = "empty"
	SkipBlank   = "blank"
	SkipFailed  = "fetch_failed"
)

// LoadStats summarizes one Load call.
type LoadStats struct {
	Prefixes int
	Listed   int
	Loaded   int
	Skipped  int
	Failed   int
}

// Loader reads every non-empty .txt object under the configured prefixes.
type Loader struct {
	store       ObjectStore
	prefixes    []string
	concurrency int
	logger      *zap.Logger
}

// New creates a Loader. concurrency <= 0 selects a default.
func New(store ObjectStore, prefixes []string, concurrency int, logger *zap.Logger) *Loader {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Loader{store: store, prefixes: prefixes, concurrency: concurrency, logger: logger}
}

// Load returns documents in prefix order, then listing order within a prefix.
// Storage failures are logged and skipped; Load only fails on context cancellation.
func (l *Loader) Load(ctx context.Context) ([]domain.Document, LoadStats, error) {
	var stats LoadStats
	l.logger.Info("Loading corpus",
		zap.String("bucket", l.store.Bucket()),
		zap.Strings("prefixes", l.prefixes),
	)

	keys := l.listKeys(ctx, &stats)
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	contents := make([]string, len(keys))
	fetched := make([]bool, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			data, err := l.store.Get(gctx, key)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.logger.Warn("Failed to load object", zap.String("key", key), zap.Error(err))
				return nil
			}
			contents[i] = strings.ToValidUTF8(string(data), "")
			fetched[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	docs := make([]domain.Document, 0, len(keys))
	for i, key := range keys {
		switch {
		case !fetched[i]:
			stats.Failed++
			metrics.IngestSkippedTotal.WithLabelValues(SkipFailed).Inc()
		case strings.TrimSpace(contents[i]) == "":
			stats.Skipped++
			metrics.IngestSkippedTotal.WithLabelValues(SkipBlank).Inc()
			l.logger.Warn("Skipping whitespace-only object", zap.String("key", key))
		default:
			docs = append(docs, domain.Document{Key: key, Content: contents[i]})
		}
	}
	stats.Loaded = len(docs)

	if len(docs) == 0 {
		l.logger.Warn("No non-empty .txt objects loaded",
			zap.String("bucket", l.store.Bucket()),
			zap.Strings("prefixes", l.prefixes),
		)
	}
	l.logger.Info("Corpus loaded",
		zap.Int("prefixes", stats.Prefixes),
		zap.Int("listed", stats.Listed),
		zap.Int("loaded", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return docs, stats, nil
}

// listKeys collects candidate keys across prefixes, dropping duplicates from overlapping prefixes.
func (l *Loader) listKeys(ctx context.Context, stats *LoadStats) []string {
	var keys []string
	seen := make(map[string]struct{})

	for _, prefix := range l.prefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		if ctx.Err() != nil {
			return keys
		}
		stats.Prefixes++

		objects, err := l.store.List(ctx, prefix)
		if err != nil {
			l.logger.Error("Failed to list objects", zap.String("prefix", prefix), zap.Error(err))
			l.diagnoseBucket(ctx)
		}
		if len(objects) == 0 && err == nil {
			l.logger.Info("No contents found for prefix", zap.String("prefix", prefix))
		}

		for _, obj := range objects {
			stats.Listed++
			if !strings.HasSuffix(obj.Key, textSuffix) {
				metrics.IngestSkippedTotal.WithLabelValues(SkipNotText).Inc()
				continue
			}
			if obj.Size <= 0 {
				stats.Skipped++
				metrics.IngestSkippedTotal.WithLabelValues(SkipEmpty).Inc()
				l.logger.Warn("Skipping empty object", zap.String("key", obj.Key))
				continue
			}
			if _, dup := seen[obj.Key]; dup {
				continue
			}
			seen[obj.Key] = struct{}{}
			keys = append(keys, obj.Key)
		}
	}
	return keys
}

func (l *Loader) diagnoseBucket(ctx context.Context) {
	err := l.store.CheckBucket(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrBucketNotFound):
		l.logger.Error("Bucket not found", zap.String("bucket", l.store.Bucket()))
	case errors.Is(err, domain.ErrBucketForbidden):
		l.logger.Error("Access denied to bucket, check credentials and permissions",
			zap.String("bucket", l.store.Bucket()))
	default:
		l.logger.Error("Bucket check failed", zap.String("bucket", l.store.Bucket()), zap.Error(err))
	}
}
