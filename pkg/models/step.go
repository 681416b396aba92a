package models

import "time"

// StepStatus represents the current state of a single step.
type StepStatus string

const (
	// StepStatusPending indicates the step is materialized but not dispatched.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates an execution attempt is in flight.
	StepStatusRunning StepStatus = "running"
	// StepStatusCompleted indicates the step succeeded.
	StepStatusCompleted StepStatus = "completed"
	// StepStatusFailed indicates the step failed. Failed is terminal once
	// the retry budget is exhausted; before that a retry moves the step
	// back to running.
	StepStatusFailed StepStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusRunning, StepStatusCompleted, StepStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends the step's lifecycle.
// Failed is only conditionally terminal; the orchestrator decides
// based on the remaining retry budget.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed
}

// Step is one atomic tool invocation within a task's plan.
type Step struct {
	// ID is the unique identifier for this step.
	ID string `json:"id"`
	// TaskID is the owning task. Back-reference only.
	TaskID string `json:"task_id"`
	// StepNumber is the 1-based position in the plan, unique within the task.
	StepNumber int `json:"step_number"`
	// Instruction is the directive for this tool invocation.
	Instruction string `json:"instruction"`
	// Tool is the registry name of the capability bound to this step.
	Tool string `json:"tool"`
	// Args holds structured tool arguments from the plan. May be empty.
	Args map[string]any `json:"args,omitempty"`
	// Status is the current lifecycle state.
	Status StepStatus `json:"status"`
	// Result is the success payload, present only when completed.
	Result string `json:"result,omitempty"`
	// Error is the most recent failure message. Cleared when a later
	// attempt succeeds; the transition log keeps the history.
	Error string `json:"error,omitempty"`
	// RetryCount is the number of attempts beyond the first.
	RetryCount int `json:"retry_count"`
	// CreatedAt is when the step was materialized.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is bumped on every mutation.
	UpdatedAt time.Time `json:"updated_at"`
	// CompletedAt is when the step reached a terminal status, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PlannedStep is one entry of a resolved plan before steps are
// materialized as records: the instruction plus its tool binding.
type PlannedStep struct {
	// Instruction is the directive for the tool invocation.
	Instruction string `json:"instruction"`
	// Tool is the registry name of the capability to invoke.
	Tool string `json:"tool"`
	// Args holds structured arguments for the tool. Optional.
	Args map[string]any `json:"args,omitempty"`
}
