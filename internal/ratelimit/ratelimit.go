package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Policy parameterizes a token bucket.
type Policy struct {
	// Capacity is the maximum token count and the initial fill.
	Capacity int64
	// RefillAmount is added per whole elapsed refill interval.
	RefillAmount int64
	// RefillInterval is the period of the refill.
	RefillInterval time.Duration
}

// Validate rejects degenerate policies before they reach a store.
func (p Policy) Validate() error {
	if p.Capacity <= 0 {
		return fmt.Errorf("rate limit policy: capacity %d must be positive", p.Capacity)
	}
	if p.RefillAmount <= 0 {
		return fmt.Errorf("rate limit policy: refill amount %d must be positive", p.RefillAmount)
	}
	if p.RefillInterval <= 0 {
		return fmt.Errorf("rate limit policy: refill interval %s must be positive", p.RefillInterval)
	}
	return nil
}

// Decision is the outcome of a rate limit check. A denial is a normal
// outcome, not an error - errors are reserved for the store being
// unreachable.
type Decision struct {
	Allowed   bool
	Remaining int64
}

// Limiter decides whether a keyed request may proceed right now.
//
// Implementations must make the read-refill-decrement cycle atomic per key:
// two concurrent checks against the same key must never both consume the
// same token.
type Limiter interface {
	Check(ctx context.Context, key string, policy Policy) (Decision, error)
}

// Clock supplies wall time for refill computation.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// refill applies lazy whole-interval refill to a bucket loaded from a
// store. Shared by the durable and redis limiters (the redis copy lives in
// the Lua script, kept semantically identical).
//
// lastRefillAt advances by the consumed intervals, NOT to now: fractional
// progress toward the next interval survives across calls, so bursty and
// steady callers converge to the same long-run grant rate.
func refill(tokens, lastRefillAtMs, nowMs int64, policy Policy) (int64, int64) {
	intervalMs := policy.RefillInterval.Milliseconds()

	elapsed := nowMs - lastRefillAtMs
	if elapsed < 0 {
		// Clock skew between instances; treat as no time elapsed.
		elapsed = 0
	}
	if elapsed < intervalMs {
		return tokens, lastRefillAtMs
	}

	wholeIntervals := elapsed / intervalMs
	tokens += wholeIntervals * policy.RefillAmount
	if tokens > policy.Capacity {
		tokens = policy.Capacity
	}
	return tokens, lastRefillAtMs + wholeIntervals*intervalMs
}
