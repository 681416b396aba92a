// Package tool provides the capability registry and the builtin toolbelt.
// Capabilities are registered once at startup and looked up by the planner
// and the executor; the registry never changes while tasks are running.
package tool

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Idempotency classifies what a retry of a capability may do.
type Idempotency string

const (
	// Idempotent capabilities can be retried freely.
	Idempotent Idempotency = "idempotent"
	// SideEffectingUnknown capabilities may repeat their effect on retry.
	// They are retried only when the operator explicitly allows it.
	SideEffectingUnknown Idempotency = "side-effecting-unknown"
	// SideEffectingUnsafe capabilities must never be retried automatically.
	SideEffectingUnsafe Idempotency = "side-effecting-unsafe"
)

// Valid returns true if the idempotency class is recognized.
func (i Idempotency) Valid() bool {
	switch i {
	case Idempotent, SideEffectingUnknown, SideEffectingUnsafe:
		return true
	}
	return false
}

// Invocation is the single argument shape every capability accepts.
type Invocation struct {
	// Instruction is the natural-language description of what to do.
	Instruction string
	// Args are the structured arguments from the resolved plan.
	Args map[string]any
	// Context carries outputs of earlier steps, keyed step_1_output,
	// step_2_output and so on.
	Context map[string]string
}

// Capability is the fixed interface every tool implements. The deadline
// arrives through ctx; implementations must return promptly once it fires.
type Capability interface {
	Invoke(ctx context.Context, inv Invocation) (string, error)
}

// CapabilityFunc adapts a plain function to the Capability interface.
type CapabilityFunc func(ctx context.Context, inv Invocation) (string, error)

// Invoke calls f.
func (f CapabilityFunc) Invoke(ctx context.Context, inv Invocation) (string, error) {
	return f(ctx, inv)
}

// Registration describes one named capability.
type Registration struct {
	// Name is the unique identifier plans refer to.
	Name string
	// Description is shown to the planner and in the tools listing.
	Description string
	// Idempotency declares what retrying this capability may do.
	Idempotency Idempotency
	// Timeout caps a single attempt. Zero means no cap beyond the
	// complexity tier's.
	Timeout time.Duration
	// Schema describes the expected Args, JSON-schema style.
	Schema map[string]any
	// Capability executes the tool.
	Capability Capability
}

// NotFoundError reports a plan step naming an unregistered tool.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// TerminalError marks a failure no retry can fix, like a refused path
// or a malformed argument. The executor reports such attempts as
// non-retryable regardless of idempotency class.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }

func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps err as unrecoverable. A nil err stays nil.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// IsTerminal reports whether err is marked unrecoverable.
func IsTerminal(err error) bool {
	var t *TerminalError
	return errors.As(err, &t)
}

// Guard vets filesystem paths before a capability touches them.
// A nil Guard allows everything.
type Guard interface {
	Check(path string) error
}

// stringArg extracts a required string argument. Failures are terminal,
// the args come from the materialized plan and never change on retry.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", Terminal(fmt.Errorf("missing argument %q", key))
	}
	s, ok := v.(string)
	if !ok {
		return "", Terminal(fmt.Errorf("argument %q must be a string", key))
	}
	if s == "" {
		return "", Terminal(fmt.Errorf("argument %q is empty", key))
	}
	return s, nil
}

// optionalStringArg extracts a string argument, falling back to def.
func optionalStringArg(args map[string]any, key, def string) (string, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", Terminal(fmt.Errorf("argument %q must be a string", key))
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}
