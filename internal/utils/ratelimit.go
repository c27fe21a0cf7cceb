package utils

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-user sliding window. A limited request is
// rejected without being counted, so hammering does not extend the
// window.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

func (r *RateLimiter) Limited(userID string) bool {
	return r.LimitedAt(userID, time.Now())
}

func (r *RateLimiter) LimitedAt(userID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)
	hits := r.requests[userID]
	idx := 0
	for _, hit := range hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	hits = hits[idx:]

	if len(hits) >= r.maxRequests {
		r.requests[userID] = hits
		return true
	}

	r.requests[userID] = append(hits, now)
	return false
}
