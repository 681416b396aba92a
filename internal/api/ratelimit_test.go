package api

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiterAllowsUnderCap(t *testing.T) {
	limiter := NewLimiter(3, time.Minute)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("three calls under cap took %v, want no blocking", elapsed)
	}
	if limiter.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", limiter.Pending())
	}
}

func TestLimiterBlocksAtCap(t *testing.T) {
	limiter := NewLimiter(2, 60*time.Millisecond)
	ctx := context.Background()

	limiter.Wait(ctx)
	limiter.Wait(ctx)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("third call waited %v, want it to block until the window slides", elapsed)
	}
}

func TestLimiterHonorsContext(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	limiter.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestLimiterDisabled(t *testing.T) {
	var nilLimiter *Limiter
	if err := nilLimiter.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait() error = %v", err)
	}

	unlimited := NewLimiter(0, time.Minute)
	for i := 0; i < 50; i++ {
		if err := unlimited.Wait(context.Background()); err != nil {
			t.Fatalf("unlimited Wait() error = %v", err)
		}
	}
}

type countingCaller struct {
	calls int
}

func (c *countingCaller) Complete(ctx context.Context, req Request) (string, error) {
	c.calls++
	return "ok", nil
}

func (c *countingCaller) Name() string { return "counting" }

func TestRateLimitedCaller(t *testing.T) {
	inner := &countingCaller{}
	limited := NewRateLimited(inner, NewLimiter(5, time.Minute))

	out, err := limited.Complete(context.Background(), Request{User: "hi"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "ok" || inner.calls != 1 {
		t.Errorf("Complete() = %q with %d inner calls, want ok with 1", out, inner.calls)
	}
	if limited.Name() != "counting" {
		t.Errorf("Name() = %q, want counting", limited.Name())
	}
}
