package orchestrator

import (
	"time"

	"github.com/foremanhq/foreman/internal/executor"
	"github.com/foremanhq/foreman/internal/tool"
)

// Fallback retry pacing when the engine config leaves it unset.
const (
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// retryDelay returns the pause before the next attempt. The base delay
// doubles per completed attempt and is capped at max.
func retryDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	if max <= 0 {
		max = defaultRetryMaxDelay
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// retryAllowed combines the attempt's own verdict with the capability's
// idempotency class. Unsafe capabilities are never retried
// automatically; unknown ones only with the operator's acknowledgment
// in the engine config.
func retryAllowed(res executor.Result, class tool.Idempotency, retrySideEffects bool) bool {
	if !res.Retryable {
		return false
	}
	switch class {
	case tool.Idempotent:
		return true
	case tool.SideEffectingUnknown:
		return retrySideEffects
	default:
		return false
	}
}
