// Package answercache caches grounded answers in a key-value store.
package answercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "answer_cache:"

// store is the consumer interface for the answer cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// answerer is the decorated grounded answerer.
type answerer interface {
	Answer(ctx context.Context, question string, passages []string) (string, error)
}

type entry struct {
	Answer string `json:"answer"`
}

// CachedAnswerer returns stored answers for an identical model, question and context.
// Failures are never cached; store errors only degrade to a miss.
type CachedAnswerer struct {
	inner      answerer
	store      store
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner answerer,
	s store,
	model string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedAnswerer {
	return &CachedAnswerer{
		inner:      inner,
		store:      s,
		model:      model,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Answer returns a cached answer or calls the inner answerer.
func (c *CachedAnswerer) Answer(ctx context.Context, question string, passages []string) (string, error) {
	if len(passages) == 0 {
		return c.inner.Answer(ctx, question, passages)
	}

	key := c.cacheKey(question, passages)
	if ans, ok := c.get(ctx, key); ok {
		c.inc("hit")
		// the model was consulted, at zero token cost
		domain.UsageFromContext(ctx).AddTokens(0)
		return ans, nil
	}
	c.inc("miss")

	ans, err := c.inner.Answer(ctx, question, passages)
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}

	c.put(ctx, key, ans)
	return ans, nil
}

func (c *CachedAnswerer) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes the model id, question and passages with NUL separators.
func (c *CachedAnswerer) cacheKey(question string, passages []string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(question))
	for _, p := range passages {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedAnswerer) get(ctx context.Context, key string) (string, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached answer", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("Failed to parse cached answer", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return e.Answer, true
}

func (c *CachedAnswerer) put(ctx context.Context, key, answer string) {
	data, err := json.Marshal(entry{Answer: answer})
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache answer", zap.String("key", key), zap.Error(err))
	}
}
