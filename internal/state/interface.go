package state

import "github.com/foremanhq/foreman/pkg/models"

// TaskStore defines task persistence operations.
type TaskStore interface {
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	ListTasks(limit, offset int) ([]models.Task, error)
	SaveTaskTransition(t *models.Task, from models.TaskStatus, detail string) error
	MaterializePlan(t *models.Task, steps []models.Step) error
	RequestCancel(id string) error
	CancelRequested(id string) (bool, error)
}

// StepStore defines step persistence operations.
type StepStore interface {
	ListSteps(taskID string) ([]models.Step, error)
	SaveStepTransition(s *models.Step, from models.StepStatus, detail string) error
}

// AuditStore exposes the transition log.
type AuditStore interface {
	ListTransitions(taskID string) ([]Transition, error)
}

// RecoveryStore finds work interrupted by a crash.
type RecoveryStore interface {
	ListInterrupted() ([]models.Task, error)
}

// StateStore combines all persistence interfaces.
type StateStore interface {
	TaskStore
	StepStore
	AuditStore
	RecoveryStore
	Migrate() error
	Close() error
}

// Ensure DB implements all store interfaces.
var _ StateStore = (*DB)(nil)
