// Package budget persists model token counters in a key-value store.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/recall/internal/db"
)

const (
	// DefaultDailyTTL keeps a daily counter through the following day.
	DefaultDailyTTL = 48 * time.Hour
	// DefaultMonthlyTTL keeps a monthly counter through the following month.
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrByWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
}

// Store implements generation.BudgetStore. Each counter expires a fixed
// time after its first write.
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store. Non-positive TTLs select the defaults.
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	if dailyTTL <= 0 {
		dailyTTL = DefaultDailyTTL
	}
	if monthTTL <= 0 {
		monthTTL = DefaultMonthlyTTL
	}
	return &Store{store: s, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

// IncrBy increments the counter and sets its TTL unless one is already set.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if _, err := s.store.IncrByWithTTL(ctx, key, val, s.ttlFor(key)); err != nil {
		return fmt.Errorf("budget incr: %w", err)
	}
	return nil
}

// Get returns the counter value, or 0 for a missing key.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("budget get %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget get %s: parse %q: %w", key, data, err)
	}
	return val, nil
}

// ttlFor picks the TTL from the period segment of recall:budget:{provider}:{daily|monthly}:{date}.
func (s *Store) ttlFor(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}
