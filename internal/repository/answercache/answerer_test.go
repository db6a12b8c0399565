package answercache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
)

func TestAnswer_MissThenHit(t *testing.T) {
	inner := &mockAnswerer{answer: "Paris"}
	c, ms := newTestCached(t, inner)
	ctx := context.Background()
	passages := []string{"Paris is the capital of France."}

	got, err := c.Answer(ctx, "capital?", passages)
	if err != nil || got != "Paris" {
		t.Fatalf("miss: got %q, %v", got, err)
	}
	if len(ms.data) != 1 {
		t.Fatalf("expected one cached entry, got %d", len(ms.data))
	}
	for k, ttl := range ms.ttls {
		if !strings.HasPrefix(k, "recall:answer_cache:") || ttl != time.Hour {
			t.Errorf("unexpected key %q ttl %v", k, ttl)
		}
	}

	got, err = c.Answer(ctx, "capital?", passages)
	if err != nil || got != "Paris" {
		t.Fatalf("hit: got %q, %v", got, err)
	}
	if inner.calls != 1 {
		t.Errorf("expected one inner call, got %d", inner.calls)
	}
}

func TestAnswer_CachesNoAnswer(t *testing.T) {
	inner := &mockAnswerer{answer: ""}
	c, _ := newTestCached(t, inner)

	for range 2 {
		if got, err := c.Answer(context.Background(), "q", []string{"p"}); err != nil || got != "" {
			t.Fatalf("got %q, %v", got, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("empty answers are cacheable, got %d inner calls", inner.calls)
	}
}

func TestAnswer_KeyDependsOnPassages(t *testing.T) {
	c, _ := newTestCached(t, &mockAnswerer{})
	a := c.cacheKey("q", []string{"ab", "c"})
	b := c.cacheKey("q", []string{"a", "bc"})
	if a == b {
		t.Error("passage boundaries must affect the key")
	}
	if c.cacheKey("q", []string{"x"}) != c.cacheKey("q", []string{"x"}) {
		t.Error("key must be deterministic")
	}
}

func TestAnswer_ErrorNotCached(t *testing.T) {
	inner := &mockAnswerer{err: domain.NewModelError(domain.ErrModelUnavailable, "m", "down")}
	c, ms := newTestCached(t, inner)

	_, err := c.Answer(context.Background(), "q", []string{"p"})
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if len(ms.data) != 0 {
		t.Error("failures must not be cached")
	}
}

func TestAnswer_NoPassagesBypassesCache(t *testing.T) {
	inner := &mockAnswerer{}
	c, ms := newTestCached(t, inner)

	if _, err := c.Answer(context.Background(), "q", nil); err != nil {
		t.Fatal(err)
	}
	if len(ms.data) != 0 || inner.calls != 1 {
		t.Errorf("expected pass-through, data=%d calls=%d", len(ms.data), inner.calls)
	}
}

func TestAnswer_StoreErrorsDegradeToMiss(t *testing.T) {
	inner := &mockAnswerer{answer: "ok"}
	c, ms := newTestCached(t, inner)
	ms.getErr = errors.New("connection refused")
	ms.setErr = errors.New("connection refused")

	got, err := c.Answer(context.Background(), "q", []string{"p"})
	if err != nil || got != "ok" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestAnswer_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockAnswerer{answer: "fresh"}
	c, ms := newTestCached(t, inner)
	ms.data[c.cacheKey("q", []string{"p"})] = []byte("{not json")

	got, err := c.Answer(context.Background(), "q", []string{"p"})
	if err != nil || got != "fresh" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestAnswer_HitMarksUsage(t *testing.T) {
	inner := &mockAnswerer{answer: "x"}
	c, _ := newTestCached(t, inner)
	if _, err := c.Answer(context.Background(), "q", []string{"p"}); err != nil {
		t.Fatal(err)
	}

	ctx, usage := domain.NewContextWithUsage(context.Background())
	if _, err := c.Answer(ctx, "q", []string{"p"}); err != nil {
		t.Fatal(err)
	}
	if !usage.Used || usage.TotalTokens != 0 {
		t.Errorf("unexpected usage %+v", usage)
	}
}

func TestAnswer_Metrics(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_answer_cache_total"}, []string{"result"})
	ms := &mockKVStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
	c := New(&mockAnswerer{answer: "a"}, ms, "m", time.Minute, counter, zap.NewNop())

	_, _ = c.Answer(context.Background(), "q", []string{"p"})
	_, _ = c.Answer(context.Background(), "q", []string{"p"})

	if v := testutil.ToFloat64(counter.WithLabelValues("miss")); v != 1 {
		t.Errorf("expected 1 miss, got %f", v)
	}
	if v := testutil.ToFloat64(counter.WithLabelValues("hit")); v != 1 {
		t.Errorf("expected 1 hit, got %f", v)
	}
}
