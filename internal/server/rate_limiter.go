// Package server throttles inbound client events with a per-connection
// token bucket.
package server

import (
	"math"
	"sync"
	"time"
)

// tokenBucket refills continuously at Burst tokens per RefillInterval and
// never holds more than Burst. Each inbound event spends one token.
type tokenBucket struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	perSecond float64
	last      time.Time
}

// newTokenBucket builds a full bucket from the hub's rate limit settings.
// Out-of-range values are clamped so the bucket always admits traffic.
func newTokenBucket(cfg RateLimitConfig) *tokenBucket {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	capacity := float64(burst)
	return &tokenBucket{
		tokens:    capacity,
		capacity:  capacity,
		perSecond: capacity / interval.Seconds(),
		last:      time.Now(),
	}
}

// allow spends one token, reporting false when the bucket is empty.
func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.perSecond)
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
