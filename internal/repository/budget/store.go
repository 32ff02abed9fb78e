// Package budget persists embedding token counters in the key-value store.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/courserank/internal/db"
	"github.com/kailas-cloud/courserank/internal/domain"
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps one counter per provider and window (INCRBY + EXPIRE NX).
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store.
// dailyTTL should outlive a day (48h), monthTTL a month (62 days).
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{
		store:    s,
		dailyTTL: dailyTTL,
		monthTTL: monthTTL,
	}
}

// Key returns the counter key for a provider and window,
// e.g. courserank:budget:openai:daily:2026-10-16.
func Key(provider string, p domain.BudgetPeriod, at time.Time) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s", domain.KeyPrefix, provider, p, p.Stamp(at))
}

// Add atomically adds tokens to the window counter. The TTL is set once,
// on first write, so repeated writes do not extend it.
func (s *Store) Add(ctx context.Context, provider string, p domain.BudgetPeriod, at time.Time, tokens int64) error {
	key := Key(provider, p, at)
	if err := s.store.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}
	if err := s.store.Expire(ctx, key, s.ttl(p), true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// Used returns the counter of the window containing at. A missing key counts as 0.
func (s *Store) Used(ctx context.Context, provider string, p domain.BudgetPeriod, at time.Time) (int64, error) {
	key := Key(provider, p, at)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}

func (s *Store) ttl(p domain.BudgetPeriod) time.Duration {
	if p == domain.BudgetDaily {
		return s.dailyTTL
	}
	return s.monthTTL
}
