package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has been accepted but not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task has been dispatched and is executing.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates every step of the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task reached a terminal failure.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transition is allowed from this status.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task is one submitted unit of work tracked through its lifecycle.
// Task status moves strictly forward: pending -> running -> completed/failed.
type Task struct {
	// ID is the unique identifier, assigned at creation.
	ID string `json:"id"`
	// Input is the original task description. Immutable.
	Input string `json:"input"`
	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`
	// Strategy is the resolved plan classification, set once after
	// resolution succeeds. Nil until then, and nil forever if
	// resolution failed.
	Strategy *Strategy `json:"strategy,omitempty"`
	// Steps is the ordered step plan. Insertion order is execution order.
	Steps []Step `json:"steps,omitempty"`
	// ErrorMessage holds the task-level failure reason when Status is failed.
	ErrorMessage string `json:"error_message,omitempty"`
	// CancelRequested is set when a caller asked for cancellation.
	// The orchestrator honors it between steps.
	CancelRequested bool `json:"cancel_requested,omitempty"`
	// Version is the optimistic-concurrency counter for store updates.
	Version int `json:"version"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is bumped on every mutation.
	UpdatedAt time.Time `json:"updated_at"`
	// CompletedAt is when the task reached a terminal status, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CurrentStep returns the first step that has not reached a terminal
// status, or nil when every step is terminal or the task has no steps.
func (t *Task) CurrentStep() *Step {
	for i := range t.Steps {
		if !t.Steps[i].Status.Terminal() {
			return &t.Steps[i]
		}
	}
	return nil
}
