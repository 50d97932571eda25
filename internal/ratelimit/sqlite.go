package ratelimit

import (
	"context"
	"database/sql"
	"fmt"

	"stockgate/internal/store"
)

// compile-time interface check
var _ Limiter = (*StoreLimiter)(nil)

// StoreLimiter is the durable token bucket over the shared SQLite store.
//
// Each check is one transaction: read the bucket row, apply lazy refill,
// decrement if a token is available, persist. The store serializes writers,
// so concurrent checks on the same key never observe the same stale bucket.
// Buckets survive process restarts - the limit holds across deploys and
// across service instances sharing the database.
type StoreLimiter struct {
	store *store.Store
	clock Clock
}

// StoreLimiterOption configures a StoreLimiter.
type StoreLimiterOption func(*StoreLimiter)

// WithClock overrides the wall clock. Used by tests to drive refill
// intervals deterministically.
func WithClock(c Clock) StoreLimiterOption {
	return func(l *StoreLimiter) { l.clock = c }
}

// NewStoreLimiter creates a durable limiter over the given store.
func NewStoreLimiter(s *store.Store, opts ...StoreLimiterOption) *StoreLimiter {
	l := &StoreLimiter{
		store: s,
		clock: systemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check implements Limiter.
//
// On first use of a key the bucket starts full (tokens = capacity). Every
// check applies whole-interval lazy refill before deciding; a denied check
// still persists the refill so the bucket's lastRefillAt keeps advancing.
func (l *StoreLimiter) Check(ctx context.Context, key string, policy Policy) (Decision, error) {
	if err := policy.Validate(); err != nil {
		return Decision{}, err
	}

	now := l.clock.Now().UnixMilli()

	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var tokens, lastRefillAt int64
	err = tx.QueryRowContext(ctx, `
		SELECT tokens, last_refill_at_ms FROM rate_limits WHERE key = ?
	`, key).Scan(&tokens, &lastRefillAt)
	switch {
	case err == sql.ErrNoRows:
		// Lazy creation: first request for a key sees a full bucket.
		tokens, lastRefillAt = policy.Capacity, now
	case err != nil:
		return Decision{}, fmt.Errorf("rate limit check: read bucket: %w", err)
	default:
		tokens, lastRefillAt = refill(tokens, lastRefillAt, now, policy)
	}

	decision := Decision{}
	if tokens > 0 {
		tokens--
		decision = Decision{Allowed: true, Remaining: tokens}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rate_limits (key, tokens, last_refill_at_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			tokens = excluded.tokens,
			last_refill_at_ms = excluded.last_refill_at_ms
	`, key, tokens, lastRefillAt)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check: persist bucket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Decision{}, fmt.Errorf("rate limit check: commit: %w", err)
	}
	return decision, nil
}
