// Package db is the key-value facade behind the answer cache and the token budget counters.
package db

import (
	"context"
	"time"
)

// Store is an optional shared cache. The service runs without one.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore holds expiring blobs and counters.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// IncrByWithTTL adds val to a counter and returns the new value.
	// ttl applies only when the key has no expiry yet.
	IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
}
