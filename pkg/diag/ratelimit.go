// ABOUTME: Fixed-window rate limiter for diagnostic output
// ABOUTME: Lets a burst through and then suppresses until the window rolls
package diag

import (
	"sync"

	"github.com/Sendspin/offline-render/pkg/timing"
)

const (
	// DefaultRateLimit is the number of reports allowed per window
	DefaultRateLimit = 10

	// DefaultRateWindow is the window length in seconds
	DefaultRateWindow = 1.0
)

// RateLimiter admits at most Limit events per Window seconds
type RateLimiter struct {
	Limit  int
	Window float64

	// now returns seconds on a monotonic clock; tests replace it
	now func() float64

	mu          sync.Mutex
	windowStart float64
	count       int
	started     bool
}

// NewRateLimiter creates a limiter using the host clock
func NewRateLimiter(limit int, window float64) *RateLimiter {
	return &RateLimiter{
		Limit:  limit,
		Window: window,
		now:    timing.NowSeconds,
	}
}

// Allow reports whether an event may be emitted now. announce is true exactly
// once per window, for the first event that is suppressed.
func (r *RateLimiter) Allow() (allowed, announce bool) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || now-r.windowStart >= r.Window {
		r.started = true
		r.windowStart = now
		r.count = 0
	}

	r.count++
	switch {
	case r.count <= r.Limit:
		return true, false
	case r.count == r.Limit+1:
		return false, true
	default:
		return false, false
	}
}
