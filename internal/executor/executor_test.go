package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/foremanhq/foreman/internal/tool"
	"github.com/foremanhq/foreman/pkg/models"
)

func capability(fn func(ctx context.Context, inv tool.Invocation) (string, error)) tool.Registration {
	return tool.Registration{
		Name:        "test_tool",
		Idempotency: tool.Idempotent,
		Capability:  tool.CapabilityFunc(fn),
	}
}

func TestExecuteSuccess(t *testing.T) {
	var got tool.Invocation
	reg := capability(func(ctx context.Context, inv tool.Invocation) (string, error) {
		got = inv
		return "payload", nil
	})

	step := models.Step{
		Instruction: "do it",
		Args:        map[string]any{"path": "x.txt"},
	}
	stepContext := map[string]string{"step_1_output": "earlier"}

	res := Execute(context.Background(), step, reg, time.Second, stepContext)
	if !res.Success {
		t.Fatalf("Result = %+v, want success", res)
	}
	if res.Payload != "payload" {
		t.Errorf("Payload = %q, want payload", res.Payload)
	}
	if res.Error != "" || res.TimedOut {
		t.Errorf("unexpected failure fields in %+v", res)
	}

	if got.Instruction != "do it" {
		t.Errorf("capability saw instruction %q", got.Instruction)
	}
	if got.Args["path"] != "x.txt" {
		t.Errorf("capability saw args %+v", got.Args)
	}
	if got.Context["step_1_output"] != "earlier" {
		t.Errorf("capability saw context %+v", got.Context)
	}
}

func TestExecuteFailureRetryable(t *testing.T) {
	reg := capability(func(ctx context.Context, inv tool.Invocation) (string, error) {
		return "", errors.New("transient glitch")
	})

	res := Execute(context.Background(), models.Step{}, reg, time.Second, nil)
	if res.Success {
		t.Fatal("Result reports success for a failed attempt")
	}
	if res.Error != "transient glitch" {
		t.Errorf("Error = %q", res.Error)
	}
	if !res.Retryable {
		t.Error("Retryable = false for an idempotent capability")
	}
	if res.TimedOut {
		t.Error("TimedOut = true for a plain failure")
	}
}

func TestExecuteUnsafeNeverRetryable(t *testing.T) {
	reg := tool.Registration{
		Name:        "danger",
		Idempotency: tool.SideEffectingUnsafe,
		Capability: tool.CapabilityFunc(func(ctx context.Context, inv tool.Invocation) (string, error) {
			return "", errors.New("boom")
		}),
	}

	res := Execute(context.Background(), models.Step{}, reg, time.Second, nil)
	if res.Retryable {
		t.Error("Retryable = true for side-effecting-unsafe capability")
	}
}

func TestExecuteTerminalErrorNotRetryable(t *testing.T) {
	reg := capability(func(ctx context.Context, inv tool.Invocation) (string, error) {
		return "", tool.Terminal(errors.New("argument \"path\" is empty"))
	})

	res := Execute(context.Background(), models.Step{}, reg, time.Second, nil)
	if res.Retryable {
		t.Error("Retryable = true for a terminal error on an idempotent capability")
	}
	if res.TimedOut {
		t.Error("TimedOut = true for a terminal error")
	}
}

func TestExecuteTimeout(t *testing.T) {
	reg := capability(func(ctx context.Context, inv tool.Invocation) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	start := time.Now()
	res := Execute(context.Background(), models.Step{}, reg, 30*time.Millisecond, nil)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Execute() took %v, want prompt deadline", elapsed)
	}

	if res.Success {
		t.Fatal("Result reports success for a timed out attempt")
	}
	if !res.TimedOut {
		t.Error("TimedOut = false")
	}
	if !strings.Contains(res.Error, "timed out after") {
		t.Errorf("Error = %q, want timeout text", res.Error)
	}
	if !res.Retryable {
		t.Error("Retryable = false for a timed out idempotent capability")
	}
}

func TestExecuteIgnoresDeadlineOverrun(t *testing.T) {
	// A capability that never checks ctx must still be abandoned at the
	// deadline.
	reg := capability(func(ctx context.Context, inv tool.Invocation) (string, error) {
		time.Sleep(3 * time.Second)
		return "late", nil
	})

	start := time.Now()
	res := Execute(context.Background(), models.Step{}, reg, 30*time.Millisecond, nil)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Execute() took %v, want prompt deadline", elapsed)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false for an overrunning capability")
	}
}

func TestExecuteCapabilityTimeoutWins(t *testing.T) {
	reg := tool.Registration{
		Name:        "short",
		Idempotency: tool.Idempotent,
		Timeout:     20 * time.Millisecond,
		Capability: tool.CapabilityFunc(func(ctx context.Context, inv tool.Invocation) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}),
	}

	res := Execute(context.Background(), models.Step{}, reg, time.Minute, nil)
	if !res.TimedOut {
		t.Fatal("TimedOut = false")
	}
	if !strings.Contains(res.Error, "20ms") {
		t.Errorf("Error = %q, want the capability's shorter deadline", res.Error)
	}
}

func TestExecutePanicCapture(t *testing.T) {
	reg := capability(func(ctx context.Context, inv tool.Invocation) (string, error) {
		panic("nil map write")
	})

	res := Execute(context.Background(), models.Step{}, reg, time.Second, nil)
	if res.Success {
		t.Fatal("Result reports success for a panicking capability")
	}
	if !strings.Contains(res.Error, "capability panicked") {
		t.Errorf("Error = %q, want panic capture text", res.Error)
	}
}

func TestExecuteParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := capability(func(ctx context.Context, inv tool.Invocation) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	res := Execute(ctx, models.Step{}, reg, time.Second, nil)
	if res.Success {
		t.Fatal("Result reports success under a cancelled parent")
	}
	if res.TimedOut {
		t.Error("TimedOut = true for cancellation")
	}
	if res.Retryable {
		t.Error("Retryable = true for cancellation")
	}
	if !strings.Contains(res.Error, "cancelled") {
		t.Errorf("Error = %q, want cancellation text", res.Error)
	}
}
