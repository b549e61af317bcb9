package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter tracks a token bucket per key (client IP or username).
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    rate.Limit
	burst    int
	lifetime time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per key.
func NewRateLimiter(perMinute int) *RateLimiter {
	l := &RateLimiter{
		buckets:  make(map[string]*bucket),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		lifetime: 5 * time.Minute,
	}
	go l.cleanup()
	return l
}

// Allow reports whether a request for the given key may proceed.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()

	return b.limiter.Allow()
}

// cleanup drops buckets idle longer than their lifetime.
func (l *RateLimiter) cleanup() {
	ticker := time.NewTicker(l.lifetime)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-l.lifetime)
		l.mu.Lock()
		for key, b := range l.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
