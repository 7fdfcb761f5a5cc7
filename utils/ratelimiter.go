package utils

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces outgoing requests to a public API.
type RateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	delay    time.Duration
}

func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{delay: delay}
}

// Wait blocks until delay has passed since the previous call or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elapsed := time.Since(r.lastCall); elapsed < r.delay {
		t := time.NewTimer(r.delay - elapsed)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	r.lastCall = time.Now()
	return nil
}
