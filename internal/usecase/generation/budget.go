package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
)

// BudgetAction defines behavior when the token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore is the persistence interface for budget counters.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// BudgetTracker counts model tokens per UTC day and month.
// Check is in-memory only; Record updates memory first, then writes behind to the store.
type BudgetTracker struct {
	mu           sync.Mutex
	dailyUsed    int64
	monthlyUsed  int64
	dailyLimit   int64
	monthlyLimit int64
	action       BudgetAction
	provider     string
	day          time.Time
	month        time.Time
	store        BudgetStore
	logger       *zap.Logger
	now          func() time.Time
}

// NewBudgetTracker creates a tracker. A zero limit means unlimited.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		provider:     provider,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	b.day, b.month = periods(b.now())
	return b
}

// WithStore attaches a persistence store and loads the current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	daily, monthly := b.keys()

	if val, err := store.Get(ctx, daily); err == nil {
		b.dailyUsed = val
	} else {
		b.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	}
	if val, err := store.Get(ctx, monthly); err == nil {
		b.monthlyUsed = val
	} else {
		b.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
	)
	return b
}

func (b *BudgetTracker) keys() (daily, monthly string) {
	daily = fmt.Sprintf("%sbudget:%s:daily:%s", domain.KeyPrefix, b.provider, b.day.Format("2006-01-02"))
	monthly = fmt.Sprintf("%sbudget:%s:monthly:%s", domain.KeyPrefix, b.provider, b.month.Format("2006-01"))
	return daily, monthly
}

// Check returns domain.ErrModelQuotaExceeded when a limit is reached and the action is reject.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()

	dailyExceeded := b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == BudgetActionReject {
		return domain.ErrModelQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record registers consumed tokens.
func (b *BudgetTracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	b.roll()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	store := b.store
	daily, monthly := b.keys()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// write-behind detached from the request context
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, daily, tokens); err != nil {
		b.logger.Warn("Failed to persist daily budget", zap.String("key", daily), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthly, tokens); err != nil {
		b.logger.Warn("Failed to persist monthly budget", zap.String("key", monthly), zap.Error(err))
	}
}

// Remaining returns tokens left per period; -1 means unlimited.
func (b *BudgetTracker) Remaining() (daily, monthly int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return remaining(b.dailyLimit, b.dailyUsed), remaining(b.monthlyLimit, b.monthlyUsed)
}

// Used returns tokens consumed in the current day and month.
func (b *BudgetTracker) Used() (daily, monthly int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.dailyUsed, b.monthlyUsed
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// roll zeroes counters when the day or month changes. Caller holds mu.
func (b *BudgetTracker) roll() {
	day, month := periods(b.now())
	if day.After(b.day) {
		b.dailyUsed = 0
		b.day = day
	}
	if month.After(b.month) {
		b.monthlyUsed = 0
		b.month = month
	}
}

func periods(t time.Time) (day, month time.Time) {
	day = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	month = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return day, month
}
