package ratelimit

import (
	"sync"
	"time"
)

// bucket tracks the token state for a single key.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter implements a token-bucket rate limiter keyed by arbitrary string
// identifiers such as client IPs. Every key gets rate tokens per window.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	window  time.Duration
	now     func() time.Time // injectable clock for testing
}

// New creates a Limiter that allows rate requests per window. A rate of zero
// or less disables limiting.
func New(rate int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
		now:     time.Now,
	}
}

// Enabled reports whether the limiter rejects anything at all.
func (l *Limiter) Enabled() bool {
	return l != nil && l.rate > 0 && l.window > 0
}

// refilled returns the bucket for key with tokens accrued since its last
// refill. Must be called with l.mu held.
func (l *Limiter) refilled(key string) *bucket {
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.rate), lastRefill: now}
		l.buckets[key] = b
		return b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * float64(l.rate) / l.window.Seconds()
		if b.tokens > float64(l.rate) {
			b.tokens = float64(l.rate)
		}
		b.lastRefill = now
	}
	return b
}

// Allow consumes one token for key and reports whether the request may
// proceed.
func (l *Limiter) Allow(key string) bool {
	return l.Take(key).Allowed
}

// Take consumes one token for key if one is available and reports the bucket
// state afterwards.
func (l *Limiter) Take(key string) Decision {
	if !l.Enabled() {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refilled(key)
	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}
	return l.decision(b, allowed)
}

// Status reports the bucket state for key without consuming a token.
func (l *Limiter) Status(key string) Decision {
	if !l.Enabled() {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.decision(l.refilled(key), true)
}

// decision must be called with l.mu held.
func (l *Limiter) decision(b *bucket, allowed bool) Decision {
	now := l.now()
	d := Decision{
		Allowed:   allowed,
		Limit:     l.rate,
		Remaining: int(b.tokens),
		ResetAt:   now,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	// Time until full replenishment from current level.
	if deficit := float64(l.rate) - b.tokens; deficit > 0 {
		perSecond := float64(l.rate) / l.window.Seconds()
		d.ResetAt = now.Add(time.Duration(deficit / perSecond * float64(time.Second)))
	}
	return d
}

// Sweep drops buckets that have been full for at least one window, so keys
// such as client IPs do not accumulate forever. It returns the number of
// buckets removed.
func (l *Limiter) Sweep() int {
	if !l.Enabled() {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) >= l.window {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
