// Package quota provides the shared cost governor: a thread-safe token
// bucket bounding aggregate evaluation cost across orchestrator
// instances inspecting the same process.
package quota

import (
	"sync"
	"sync/atomic"
	"time"
)

// LeakyBucket is a token bucket with a fixed capacity and a steady fill
// rate. Takes decrement an atomic counter on the fast path; when the
// counter goes negative, the slow path accrues elapsed refill (including
// fractional tokens) under a mutex before deciding. The bucket starts
// full.
type LeakyBucket struct {
	capacity int64
	fillRate float64 // tokens per second
	now      func() time.Time

	tokens atomic.Int64

	mu       sync.Mutex
	fraction float64
	lastFill time.Time
}

// NewLeakyBucket creates a bucket with the given capacity and fill rate
// in tokens per second.
func NewLeakyBucket(capacity int64, fillRate float64) *LeakyBucket {
	return NewLeakyBucketWithClock(capacity, fillRate, time.Now)
}

// NewLeakyBucketWithClock is NewLeakyBucket with an injectable clock.
func NewLeakyBucketWithClock(capacity int64, fillRate float64, clock func() time.Time) *LeakyBucket {
	b := &LeakyBucket{
		capacity: capacity,
		fillRate: fillRate,
		now:      clock,
		lastFill: clock(),
	}
	b.tokens.Store(capacity)
	return b
}

// TryTake removes n tokens if available and reports whether it did.
// A refusal leaves the bucket unchanged.
func (b *LeakyBucket) TryTake(n int64) bool {
	if n <= 0 {
		return true
	}
	if b.tokens.Add(-n) >= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if b.tokens.Load() >= 0 {
		return true
	}
	b.tokens.Add(n)
	return false
}

// Take removes n tokens unconditionally. The level may go negative;
// future refills pay the debt before new takes succeed.
func (b *LeakyBucket) Take(n int64) {
	if n > 0 {
		b.tokens.Add(-n)
	}
}

// Level returns the current token count after accruing refill. Negative
// levels mean outstanding debt.
func (b *LeakyBucket) Level() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens.Load()
}

func (b *LeakyBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.lastFill = now

	acc := b.fraction + elapsed*b.fillRate
	whole := int64(acc)
	b.fraction = acc - float64(whole)
	if whole <= 0 {
		return
	}
	cur := b.tokens.Load()
	if cur+whole >= b.capacity {
		whole = b.capacity - cur
		b.fraction = 0
	}
	if whole > 0 {
		b.tokens.Add(whole)
	}
}
