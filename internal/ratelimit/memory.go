package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// compile-time interface check
var _ Limiter = (*MemoryLimiter)(nil)

// MemoryLimiter is a process-local limiter backed by x/time/rate, with one
// cached rate.Limiter per key and idle-entry cleanup.
//
// It trades the durable limiter's guarantees for speed: buckets refill
// continuously rather than per whole interval, state dies with the process,
// and nothing is shared across instances. Suitable only for single-instance
// deployments or as a cheap front stop before the durable check.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	idleTTL time.Duration
}

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiterOption configures a MemoryLimiter.
type MemoryLimiterOption func(*MemoryLimiter)

// WithIdleTTL sets how long an unused key's bucket is kept before Cleanup
// drops it.
func WithIdleTTL(d time.Duration) MemoryLimiterOption {
	return func(l *MemoryLimiter) { l.idleTTL = d }
}

// NewMemoryLimiter creates an in-memory limiter.
func NewMemoryLimiter(opts ...MemoryLimiterOption) *MemoryLimiter {
	l := &MemoryLimiter{
		entries: make(map[string]*memoryEntry),
		idleTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check implements Limiter.
//
// Remaining is reported from the limiter's token estimate at decision time;
// with continuous refill it is advisory rather than exact.
func (l *MemoryLimiter) Check(_ context.Context, key string, policy Policy) (Decision, error) {
	if err := policy.Validate(); err != nil {
		return Decision{}, err
	}

	lim := l.get(key, policy)
	if !lim.Allow() {
		return Decision{Allowed: false, Remaining: 0}, nil
	}

	remaining := int64(lim.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

func (l *MemoryLimiter) get(key string, policy Policy) *rate.Limiter {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if ent, ok := l.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	perSecond := float64(policy.RefillAmount) / policy.RefillInterval.Seconds()
	lim := rate.NewLimiter(rate.Limit(perSecond), int(policy.Capacity))
	l.entries[key] = &memoryEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup drops buckets that have been idle longer than the TTL.
// Callers run it on a timer; missing a run only costs memory.
func (l *MemoryLimiter) Cleanup() {
	cutoff := time.Now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// Len returns the number of cached buckets. Used for tests and diagnostics.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
