package api

import (
	"context"
	"sync"
	"time"
)

// Limiter caps reasoning calls with a sliding window. The default
// engine policy is 10 calls per 60 seconds.
type Limiter struct {
	max    int
	window time.Duration

	mu    sync.Mutex
	calls []time.Time
}

// NewLimiter creates a limiter allowing max calls per window.
// A non-positive max disables limiting.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{max: max, window: window}
}

// Wait blocks until a call slot is free, then claims it. It returns
// early with the context error if ctx is done first.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.max <= 0 {
		return nil
	}

	for {
		l.mu.Lock()
		now := time.Now()
		l.prune(now)
		if len(l.calls) < l.max {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.window - now.Sub(l.calls[0])
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Pending returns how many calls currently count against the window.
func (l *Limiter) Pending() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(time.Now())
	return len(l.calls)
}

// prune drops call records older than the window. Callers hold the lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	l.calls = l.calls[i:]
}

// RateLimited wraps a Caller so every completion first claims a
// limiter slot.
type RateLimited struct {
	inner   Caller
	limiter *Limiter
}

// NewRateLimited wraps inner with the limiter.
func NewRateLimited(inner Caller, limiter *Limiter) *RateLimited {
	return &RateLimited{inner: inner, limiter: limiter}
}

// Complete waits for a slot and then delegates.
func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Complete(ctx, req)
}

// Name identifies the wrapped provider.
func (r *RateLimited) Name() string {
	return r.inner.Name()
}
