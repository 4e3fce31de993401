package ratelimiter

import (
	"sync"
	"time"
)

// Limiter provides simple time-based rate limiting.
// It allows one action per interval and is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastAllowed time.Time
}

// New creates a new rate limiter with the specified interval.
// Actions will be rate-limited to at most one per interval.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
	}
}

// Allow checks if an action is allowed at this time.
// Returns true if allowed (and records this as the last allowed time),
// or false with the remaining wait duration if rate-limited.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	timeSinceLast := now.Sub(l.lastAllowed)

	if timeSinceLast >= l.interval {
		l.lastAllowed = now
		return true, 0
	}

	return false, l.interval - timeSinceLast
}

// idle reports whether a full interval has passed since the last allowed action
func (l *Limiter) idle(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return now.Sub(l.lastAllowed) >= l.interval
}

// Keyed holds one Limiter per key, e.g. one per directory opened.
type Keyed struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*Limiter
}

// NewKeyed creates a keyed limiter allowing one action per key per interval.
func NewKeyed(interval time.Duration) *Keyed {
	return &Keyed{
		interval: interval,
		limiters: make(map[string]*Limiter),
	}
}

// Allow checks whether an action for key is allowed now.
// Keys idle for a full interval are dropped first; they would be allowed anyway.
func (k *Keyed) Allow(key string) (bool, time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	for other, l := range k.limiters {
		if l.idle(now) {
			delete(k.limiters, other)
		}
	}
	l, ok := k.limiters[key]
	if !ok {
		l = New(k.interval)
		k.limiters[key] = l
	}
	return l.Allow()
}

// Forget drops the state for key.
func (k *Keyed) Forget(key string) {
	k.mu.Lock()
	delete(k.limiters, key)
	k.mu.Unlock()
}
