package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/db"
)

type incrCall struct {
	key string
	val int64
	ttl time.Duration
}

type mockKV struct {
	data    map[string][]byte
	incrErr error
	getErr  error
	incrs   []incrCall
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) IncrByWithTTL(_ context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	m.incrs = append(m.incrs, incrCall{key, val, ttl})
	return val, m.incrErr
}

func TestIncrBy_SetsTTLByPeriod(t *testing.T) {
	kv := &mockKV{}
	s := New(kv, time.Hour, 2*time.Hour)

	if err := s.IncrBy(context.Background(), "recall:budget:bedrock:daily:2026-01-02", 5); err != nil {
		t.Fatal(err)
	}
	if err := s.IncrBy(context.Background(), "recall:budget:bedrock:monthly:2026-01", 5); err != nil {
		t.Fatal(err)
	}

	want := []incrCall{
		{"recall:budget:bedrock:daily:2026-01-02", 5, time.Hour},
		{"recall:budget:bedrock:monthly:2026-01", 5, 2 * time.Hour},
	}
	if len(kv.incrs) != len(want) {
		t.Fatalf("expected %d calls, got %+v", len(want), kv.incrs)
	}
	for i, w := range want {
		if kv.incrs[i] != w {
			t.Errorf("call %d: got %+v, want %+v", i, kv.incrs[i], w)
		}
	}
}

func TestIncrBy_Error(t *testing.T) {
	kv := &mockKV{incrErr: errors.New("boom")}
	if err := New(kv, 0, 0).IncrBy(context.Background(), "k:daily:x", 1); err == nil {
		t.Error("expected incr error")
	}
	if kv.incrs[0].ttl != DefaultDailyTTL {
		t.Errorf("expected default daily TTL, got %v", kv.incrs[0].ttl)
	}
}

func TestGet(t *testing.T) {
	kv := &mockKV{data: map[string][]byte{"a": []byte("42"), "bad": []byte("x")}}
	s := New(kv, 0, 0)

	if v, err := s.Get(context.Background(), "a"); err != nil || v != 42 {
		t.Errorf("got %d, %v", v, err)
	}
	if v, err := s.Get(context.Background(), "missing"); err != nil || v != 0 {
		t.Errorf("missing key must be 0, got %d, %v", v, err)
	}
	if _, err := s.Get(context.Background(), "bad"); err == nil {
		t.Error("expected parse error")
	}

	kv.getErr = errors.New("down")
	if _, err := s.Get(context.Background(), "a"); err == nil {
		t.Error("expected store error")
	}
}
