// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle paces requests to one upstream with a token bucket and holds
// all callers back after the upstream signals a rate limit.
type Throttle struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewThrottle returns a throttle allowing rps requests per second with the
// given burst. A non-positive rps disables pacing but keeps 429 backoff.
func NewThrottle(rps float64, burst int) *Throttle {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	retryAt := t.retryAt
	t.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return t.limiter.Wait(ctx)
}

// Backoff holds every caller back for d. Non-positive durations fall back
// to RetryBaseDelay. An earlier deadline never shortens a later one.
func (t *Throttle) Backoff(d time.Duration) {
	if d <= 0 {
		d = RetryBaseDelay
	}
	at := time.Now().Add(d)

	t.mu.Lock()
	defer t.mu.Unlock()
	if at.After(t.retryAt) {
		t.retryAt = at
	}
}
