package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewLimiter(limit, window, WithClock(clock)), clock
}

func TestAllow_WithinLimit(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _ := l.Allow("1.2.3.4")
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	allowed, retryAfter := l.Allow("1.2.3.4")
	if allowed {
		t.Error("request over the limit should be rejected")
	}
	if retryAfter != time.Minute {
		t.Errorf("retryAfter = %v, want %v", retryAfter, time.Minute)
	}
}

func TestAllow_WindowReset(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.Allow("k")
	l.Allow("k")
	if allowed, _ := l.Allow("k"); allowed {
		t.Fatal("third request should be rejected")
	}

	clock.Advance(time.Minute)
	if allowed, _ := l.Allow("k"); !allowed {
		t.Error("request after window elapsed should be allowed")
	}
}

func TestAllow_RetryAfterShrinks(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	l.Allow("k")
	clock.Advance(40 * time.Second)
	allowed, retryAfter := l.Allow("k")
	if allowed {
		t.Fatal("request within window should be rejected")
	}
	if retryAfter != 20*time.Second {
		t.Errorf("retryAfter = %v, want %v", retryAfter, 20*time.Second)
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	l.Allow("a")
	if allowed, _ := l.Allow("a"); allowed {
		t.Error("second request for same key should be rejected")
	}
	if allowed, _ := l.Allow("b"); !allowed {
		t.Error("different key should have its own window")
	}
}

func TestRemaining(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	if got := l.Remaining("k"); got != 3 {
		t.Errorf("fresh key Remaining = %d, want 3", got)
	}
	l.Allow("k")
	l.Allow("k")
	if got := l.Remaining("k"); got != 1 {
		t.Errorf("Remaining after 2 requests = %d, want 1", got)
	}
	clock.Advance(time.Minute)
	if got := l.Remaining("k"); got != 3 {
		t.Errorf("Remaining after window elapsed = %d, want 3", got)
	}
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	l.Allow("k")
	if allowed, _ := l.Allow("k"); allowed {
		t.Fatal("second request should be rejected")
	}
	l.Reset("k")
	if allowed, _ := l.Allow("k"); !allowed {
		t.Error("request after Reset should be allowed")
	}
}

func TestSweepDropsStaleWindows(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	l.Allow("stale")
	clock.Advance(2 * time.Minute)
	// Opening a window for another key sweeps elapsed ones.
	l.Allow("fresh")

	l.mu.Lock()
	_, ok := l.entries["stale"]
	l.mu.Unlock()
	if ok {
		t.Error("stale window should have been swept")
	}
}
