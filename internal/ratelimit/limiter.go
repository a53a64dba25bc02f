// Package ratelimit provides fixed-window admission control shared
// across all API endpoints.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultWindow is the default fixed-window length.
	DefaultWindow = 60 * time.Second
	// DefaultCapacity is the default number of requests admitted per window.
	DefaultCapacity = 100

	sweepInterval = 30 * time.Second
)

type entry struct {
	count         int
	windowResetAt time.Time
}

// Limiter is a fixed-window counting rate limiter keyed by client
// identity. All methods are safe for concurrent use; the background
// sweep takes the same mutex, so an entry is never removed while a live
// request is being evaluated.
type Limiter struct {
	mu       sync.Mutex
	entries  map[string]*entry
	window   time.Duration
	capacity int
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a limiter with the given window and per-window capacity.
// Non-positive values fall back to the defaults.
func New(window time.Duration, capacity int, logger *zap.Logger) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Limiter{
		entries:  make(map[string]*entry),
		window:   window,
		capacity: capacity,
		now:      time.Now,
		logger:   logger,
	}
}

// Allow reports whether a request for key is admitted. A missing or
// expired entry is replaced with count=1; a live entry at capacity is
// denied without mutation.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.windowResetAt) {
		l.entries[key] = &entry{count: 1, windowResetAt: now.Add(l.window)}
		return true
	}
	if e.count >= l.capacity {
		return false
	}
	e.count++
	return true
}

// Remaining returns how many requests key may still make in the current
// window. Capacity if no live entry exists.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || l.now().After(e.windowResetAt) {
		return l.capacity
	}
	if rem := l.capacity - e.count; rem > 0 {
		return rem
	}
	return 0
}

// RetryAfter returns how long key must wait for the current window to
// reset. Zero when no live entry exists.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return 0
	}
	if d := e.windowResetAt.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Sweep removes entries whose window has passed and returns how many
// were dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if now.After(e.windowResetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries periodically until ctx is cancelled.
// Intended to be started once from the composition root.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug("swept expired rate limit entries", zap.Int("removed", removed))
			}
		}
	}
}
