// Package executor runs exactly one attempt of one step against its
// capability, under a hard deadline, and reports a normalized result.
// It knows nothing about retry policy or task state; that is the
// orchestrator's business.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foremanhq/foreman/internal/tool"
	"github.com/foremanhq/foreman/pkg/models"
)

// Result is the normalized outcome of one step attempt. Capability
// errors never escape raw; they land in Error with Retryable set from
// the idempotency class and the error kind.
type Result struct {
	// Success reports whether the attempt completed without error.
	Success bool
	// Payload is the capability output on success.
	Payload string
	// Error is the failure text on failure.
	Error string
	// Retryable reports whether another attempt is permitted to help.
	Retryable bool
	// TimedOut reports whether the attempt hit its deadline.
	TimedOut bool
	// Duration is how long the attempt ran.
	Duration time.Duration
}

type attemptOutcome struct {
	payload string
	err     error
}

// Execute runs one attempt of step with the given registration. The
// effective deadline is the smaller of timeout and the capability's own
// declared timeout. Prior step outputs arrive in stepContext and are
// handed to the capability unchanged.
func Execute(ctx context.Context, step models.Step, reg tool.Registration, timeout time.Duration, stepContext map[string]string) Result {
	effective := timeout
	if reg.Timeout > 0 && (effective <= 0 || reg.Timeout < effective) {
		effective = reg.Timeout
	}
	if effective <= 0 {
		effective = time.Minute
	}

	cctx, cancel := context.WithTimeout(ctx, effective)
	defer cancel()

	inv := tool.Invocation{
		Instruction: step.Instruction,
		Args:        step.Args,
		Context:     stepContext,
	}

	start := time.Now()
	done := make(chan attemptOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptOutcome{err: fmt.Errorf("capability panicked: %v", r)}
			}
		}()
		payload, err := reg.Capability.Invoke(cctx, inv)
		done <- attemptOutcome{payload: payload, err: err}
	}()

	select {
	case outcome := <-done:
		return normalize(outcome, reg, effective, time.Since(start))

	case <-cctx.Done():
		duration := time.Since(start)
		if errors.Is(cctx.Err(), context.Canceled) {
			// Parent cancellation, not a deadline.
			return Result{
				Error:     "attempt cancelled",
				Retryable: false,
				Duration:  duration,
			}
		}
		return Result{
			Error:     fmt.Sprintf("timed out after %s", effective),
			Retryable: reg.Idempotency != tool.SideEffectingUnsafe,
			TimedOut:  true,
			Duration:  duration,
		}
	}
}

// normalize folds an attempt outcome into a Result.
func normalize(outcome attemptOutcome, reg tool.Registration, effective time.Duration, duration time.Duration) Result {
	if outcome.err == nil {
		return Result{
			Success:  true,
			Payload:  outcome.payload,
			Duration: duration,
		}
	}

	// A capability that surfaces its own deadline still counts as a
	// timeout.
	if errors.Is(outcome.err, context.DeadlineExceeded) {
		return Result{
			Error:     fmt.Sprintf("timed out after %s", effective),
			Retryable: reg.Idempotency != tool.SideEffectingUnsafe,
			TimedOut:  true,
			Duration:  duration,
		}
	}
	if errors.Is(outcome.err, context.Canceled) {
		return Result{
			Error:     "attempt cancelled",
			Retryable: false,
			Duration:  duration,
		}
	}

	retryable := reg.Idempotency != tool.SideEffectingUnsafe
	if tool.IsTerminal(outcome.err) {
		retryable = false
	}
	return Result{
		Error:     outcome.err.Error(),
		Retryable: retryable,
		Duration:  duration,
	}
}
