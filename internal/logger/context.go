package logger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

type ctxKey struct{}

var fallback atomic.Pointer[zap.Logger]

// SetDefault sets the logger FromContext returns when the context carries none,
// so work started outside a request (startup build, shutdown) still logs.
func SetDefault(l *zap.Logger) {
	fallback.Store(l)
}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Falls back to the default logger, then to zap.NewNop().
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	if l := fallback.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}
