package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
)

func TestThrottled_Unlimited(t *testing.T) {
	inner := &mockGenerator{result: domain.GenerateResult{Text: "ok"}}
	g := NewThrottled(inner, "m", 0, 0)

	for range 5 {
		if _, err := g.Generate(context.Background(), domain.GenerateRequest{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 5 {
		t.Errorf("calls = %d, want 5", inner.calls)
	}
}

func TestThrottled_WaitCancelled(t *testing.T) {
	inner := &mockGenerator{result: domain.GenerateResult{Text: "ok"}}
	g := NewThrottled(inner, "m", 0.001, 1)

	if _, err := g.Generate(context.Background(), domain.GenerateRequest{}); err != nil {
		t.Fatalf("first call uses the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, domain.GenerateRequest{})
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
	var me *domain.ModelError
	if !errors.As(err, &me) || me.Model != "m" {
		t.Errorf("expected *ModelError for model m, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}
