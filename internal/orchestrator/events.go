// Package orchestrator drives tasks from submission to a terminal
// status: strategy resolution, plan materialization, sequential step
// dispatch with retries, and crash recovery after a restart.
package orchestrator

import (
	"time"
)

// EventType identifies the kind of engine event.
type EventType string

const (
	// EventTaskQueued indicates a task was accepted and queued.
	EventTaskQueued EventType = "task_queued"
	// EventTaskStarted indicates a worker picked the task up.
	EventTaskStarted EventType = "task_started"
	// EventPlanResolved indicates the strategy and step plan are persisted.
	EventPlanResolved EventType = "plan_resolved"
	// EventStepStarted indicates a step attempt was dispatched.
	EventStepStarted EventType = "step_started"
	// EventStepCompleted indicates a step finished successfully.
	EventStepCompleted EventType = "step_completed"
	// EventStepRetrying indicates a failed attempt will be retried.
	EventStepRetrying EventType = "step_retrying"
	// EventStepFailed indicates a step failed with no retry left.
	EventStepFailed EventType = "step_failed"
	// EventTaskCompleted indicates every step of the task succeeded.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates the task reached a terminal failure.
	EventTaskFailed EventType = "task_failed"
	// EventTaskCancelled indicates a cancel request was honored.
	EventTaskCancelled EventType = "task_cancelled"
	// EventEngineStopped indicates the engine shut down.
	EventEngineStopped EventType = "engine_stopped"
)

// Event is one observation of engine progress. These are consumed by
// the CLI's headless printer and by tests; emission never blocks, a
// full buffer drops the event.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the related task, empty for engine-level events.
	TaskID string
	// StepNumber is the related step, zero for task-level events.
	StepNumber int
	// Tool is the capability involved, if any.
	Tool string
	// Message provides additional context about the event.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
