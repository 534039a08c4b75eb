package quota

import (
	"testing"
	"time"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBucketStartsFull(t *testing.T) {
	clock := newFakeClock()
	b := NewLeakyBucketWithClock(10, 1, clock.now)

	for i := 0; i < 10; i++ {
		if !b.TryTake(1) {
			t.Fatalf("take %d refused on a full bucket", i)
		}
	}
	if b.TryTake(1) {
		t.Error("take succeeded on an empty bucket")
	}
}

func TestBucketRefillsOverTime(t *testing.T) {
	clock := newFakeClock()
	b := NewLeakyBucketWithClock(10, 2, clock.now) // 2 tokens per second

	if !b.TryTake(10) {
		t.Fatal("draining a full bucket failed")
	}
	if b.TryTake(1) {
		t.Fatal("empty bucket granted a token")
	}

	clock.advance(1 * time.Second)
	if !b.TryTake(2) {
		t.Error("2 tokens expected after 1s at rate 2")
	}
	if b.TryTake(1) {
		t.Error("more tokens granted than accrued")
	}
}

func TestBucketFractionalAccrual(t *testing.T) {
	clock := newFakeClock()
	b := NewLeakyBucketWithClock(10, 1, clock.now) // 1 token per second

	if !b.TryTake(10) {
		t.Fatal("draining failed")
	}

	// Two 500ms waits accrue one whole token even though each alone
	// yields only a fraction.
	clock.advance(500 * time.Millisecond)
	if b.TryTake(1) {
		t.Error("half a token granted as whole")
	}
	clock.advance(500 * time.Millisecond)
	if !b.TryTake(1) {
		t.Error("fractions did not accumulate into a token")
	}
}

func TestBucketSaturatesAtCapacity(t *testing.T) {
	clock := newFakeClock()
	b := NewLeakyBucketWithClock(5, 100, clock.now)

	clock.advance(time.Hour)
	if got := b.Level(); got != 5 {
		t.Errorf("level after long idle = %d, want capacity 5", got)
	}
	for i := 0; i < 5; i++ {
		if !b.TryTake(1) {
			t.Fatalf("take %d refused at capacity", i)
		}
	}
	if b.TryTake(1) {
		t.Error("take beyond capacity succeeded")
	}
}

func TestBucketRefusalLeavesLevelUnchanged(t *testing.T) {
	clock := newFakeClock()
	b := NewLeakyBucketWithClock(3, 0, clock.now)

	if !b.TryTake(2) {
		t.Fatal("initial take failed")
	}
	if b.TryTake(5) {
		t.Fatal("oversized take succeeded")
	}
	// The refused take must not have eaten the remaining token.
	if !b.TryTake(1) {
		t.Error("remaining token lost by a refused take")
	}
}

func TestTakeGoesIntoDebt(t *testing.T) {
	clock := newFakeClock()
	b := NewLeakyBucketWithClock(2, 1, clock.now)

	b.Take(5)
	if got := b.Level(); got != -3 {
		t.Errorf("level after forced take = %d, want -3", got)
	}
	if b.TryTake(1) {
		t.Error("take granted while in debt")
	}

	// Debt is paid before new takes succeed: 4 seconds accrues 4
	// tokens, landing at level 1.
	clock.advance(4 * time.Second)
	if !b.TryTake(1) {
		t.Error("take refused after debt was paid down")
	}
	if b.TryTake(1) {
		t.Error("take granted beyond the paid-down level")
	}
}
