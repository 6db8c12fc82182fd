package translate

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is returned when the window is full.
var ErrRateLimited = errors.New("translation rate limit exceeded")

// RateLimitError is the fail-fast rejection handed to callers, carrying how
// long until the oldest call ages out of the window. It matches
// ErrRateLimited under errors.Is; backoff is the caller's job.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v, next slot in %s", ErrRateLimited, e.RetryAfter.Round(time.Millisecond))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RateLimiter allows at most maxCalls within a sliding window. Call
// timestamps older than the window are dropped on every check.
type RateLimiter struct {
	maxCalls int
	window   time.Duration

	mu    sync.Mutex
	calls []time.Time
}

func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	if maxCalls <= 0 {
		maxCalls = 50
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{maxCalls: maxCalls, window: window}
}

// Allow records a call if the window has room, otherwise returns
// ErrRateLimited without recording anything.
func (r *RateLimiter) Allow() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(time.Now())
	if len(r.calls) >= r.maxCalls {
		return ErrRateLimited
	}
	r.calls = append(r.calls, time.Now())
	return nil
}

// TimeUntilNextCall reports how long until the oldest call ages out of the
// window, or zero when a slot is already free.
func (r *RateLimiter) TimeUntilNextCall() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.pruneLocked(now)
	if len(r.calls) < r.maxCalls {
		return 0
	}
	return r.calls[0].Add(r.window).Sub(now)
}

// Remaining reports how many calls the current window still allows.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(time.Now())
	return r.maxCalls - len(r.calls)
}

func (r *RateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-r.window)
	keep := r.calls[:0]
	for _, ts := range r.calls {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	r.calls = keep
}
