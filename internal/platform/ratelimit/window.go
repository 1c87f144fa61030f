// Package ratelimit bounds unauthenticated ingestion with a per-key sliding
// window. State is process-local; each replica enforces its own budget.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a single check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is only set when the request was refused.
	RetryAfter time.Duration
}

// Window is an in-memory sliding window keyed by caller identity.
type Window struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewWindow allows limit requests per key within any window-long interval.
func NewWindow(limit int, window time.Duration) *Window {
	return &Window{
		buckets: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records one request for key if it fits in the window.
func (w *Window) Allow(key string) Result {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	stamps := prune(w.buckets[key], now.Add(-w.window))

	if len(stamps) >= w.limit {
		w.buckets[key] = stamps
		resetAt := stamps[0].Add(w.window)
		return Result{
			Allowed:    false,
			Limit:      w.limit,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}

	stamps = append(stamps, now)
	w.buckets[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     w.limit,
		Remaining: w.limit - len(stamps),
		ResetAt:   stamps[0].Add(w.window),
	}
}

// Sweep drops keys whose window has fully expired.
func (w *Window) Sweep() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.window)
	removed := 0
	for key, stamps := range w.buckets {
		if len(prune(stamps, cutoff)) == 0 {
			delete(w.buckets, key)
			removed++
		}
	}
	return removed
}

// prune removes timestamps at or before cutoff. Stamps are kept in arrival
// order so the expired ones form a prefix.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
