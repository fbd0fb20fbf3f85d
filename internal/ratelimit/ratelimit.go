// Package ratelimit implements a fixed-window request limiter keyed by
// client identity.
//
// Each key gets an independent window: the first request opens the window
// and subsequent requests within it count against the limit. When the window
// elapses the count resets. The clock is injected so tests can control time.
package ratelimit

import (
	"sync"
	"time"
)

// Default limits for authentication endpoints.
const (
	// LoginLimit is the number of login attempts allowed per LoginWindow.
	LoginLimit = 5
	// LoginWindow is the fixed window for login attempts.
	LoginWindow = 15 * time.Minute
	// RegisterLimit is the number of registrations allowed per RegisterWindow.
	RegisterLimit = 3
	// RegisterWindow is the fixed window for registrations.
	RegisterWindow = time.Hour
)

// Clock abstracts time so tests can control window boundaries.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

type window struct {
	start time.Time
	count int
}

// Limiter is a fixed-window rate limiter. The zero value is not usable;
// construct with NewLimiter.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clock   Clock
	entries map[string]*window
}

// Opts holds configuration options for a Limiter.
type Opts struct {
	// Clock overrides the time source; nil means SystemClock.
	Clock Clock
}

// Option defines a functional option for limiter configuration.
type Option func(*Opts)

// WithClock overrides the limiter's time source.
func WithClock(c Clock) Option {
	return func(o *Opts) {
		o.Clock = c
	}
}

// NewLimiter creates a limiter allowing limit requests per fixed window.
func NewLimiter(limit int, windowSize time.Duration, opts ...Option) *Limiter {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Limiter{
		limit:   limit,
		window:  windowSize,
		clock:   clock,
		entries: make(map[string]*window),
	}
}

// Allow reports whether a request for key is admitted. When the request is
// rejected, retryAfter is the time remaining until the window resets.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w, ok := l.entries[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.entries[key] = &window{start: now, count: 1}
		l.sweepLocked(now)
		return true, 0
	}
	if w.count < l.limit {
		w.count++
		return true, 0
	}
	return false, w.start.Add(l.window).Sub(now)
}

// Remaining reports how many requests key may still make in its current
// window. A key with no open window has the full limit available.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.entries[key]
	if !ok || l.clock.Now().Sub(w.start) >= l.window {
		return l.limit
	}
	return l.limit - w.count
}

// Reset clears the window for key, forgiving prior requests.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// sweepLocked drops windows that have fully elapsed. Called with the mutex
// held, piggybacking on window creation so the map does not grow without
// bound.
func (l *Limiter) sweepLocked(now time.Time) {
	for key, w := range l.entries {
		if now.Sub(w.start) >= l.window {
			delete(l.entries, key)
		}
	}
}
