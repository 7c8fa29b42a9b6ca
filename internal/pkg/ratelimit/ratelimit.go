// Package ratelimit provides token-bucket limiters keyed by caller, held either in
// process memory or in Redis when several hub replicas share the budget.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Policy is a refill rate with a burst capacity.
type Policy struct {
	PerSecond float64
	Burst     int
}

// PerMinute builds a policy from a per-minute budget.
func PerMinute(n, burst int) Policy {
	return Policy{PerSecond: float64(n) / 60.0, Burst: burst}
}

// MemoryLimiter keeps one rate.Limiter per key.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	policy   Policy
	idleTTL  time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates a new in-process limiter
func NewMemoryLimiter(policy Policy) *MemoryLimiter {
	return &MemoryLimiter{
		limiters: make(map[string]*entry),
		policy:   policy,
		idleTTL:  10 * time.Minute,
	}
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	e, ok := m.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(m.policy.PerSecond), m.policy.Burst)}
		m.limiters[key] = e
	}
	e.lastSeen = time.Now()
	m.mu.Unlock()

	return e.limiter.Allow(), nil
}

// Cleanup drops limiters that have been idle longer than the idle TTL.
func (m *MemoryLimiter) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.idleTTL)
	for key, e := range m.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(m.limiters, key)
		}
	}
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (m *MemoryLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
