package answercache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/db"
)

type mockAnswerer struct {
	answer string
	err    error
	calls  int
}

func (m *mockAnswerer) Answer(_ context.Context, _ string, _ []string) (string, error) {
	m.calls++
	return m.answer, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func newTestCached(t *testing.T, inner *mockAnswerer) (*CachedAnswerer, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
	return New(inner, ms, "model-1", time.Hour, nil, zap.NewNop()), ms
}
