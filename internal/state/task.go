package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/foremanhq/foreman/pkg/models"
)

var (
	// ErrNotFound is returned when an update targets a row that does not exist.
	ErrNotFound = errors.New("state: not found")
	// ErrVersionConflict is returned when an optimistic update loses the race:
	// the task row was modified since it was read.
	ErrVersionConflict = errors.New("state: version conflict")
)

// Transition entity labels for the audit log.
const (
	EntityTask = "task"
	EntityStep = "step"
)

// Transition is one audited state change of a task or step.
type Transition struct {
	ID         int64     `json:"id"`
	TaskID     string    `json:"task_id"`
	StepID     string    `json:"step_id,omitempty"`
	Entity     string    `json:"entity"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateTask inserts a new task record and audits its creation.
// The task is stored exactly as given; Version starts at 0.
func (db *DB) CreateTask(t *models.Task) error {
	t.Version = 0
	t.UpdatedAt = time.Now().UTC()

	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO tasks (id, input, status, strategy, error_message, cancel_requested, version, created_at, updated_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.Input, string(t.Status), marshalStrategy(t.Strategy), t.ErrorMessage, boolToInt(t.CancelRequested), t.Version, formatTime(t.CreatedAt), formatTime(t.UpdatedAt), nil)
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return insertTransition(tx, t.ID, "", EntityTask, "", string(t.Status), "task created")
	})
}

// GetTask retrieves a task row by ID. Returns (nil, nil) when absent.
// Steps are not loaded; use ListSteps.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`
		SELECT id, input, status, strategy, error_message, cancel_requested, version, created_at, updated_at, completed_at
		FROM tasks WHERE id = ?
	`, id)

	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns tasks newest first. A non-positive limit defaults to 50.
func (db *DB) ListTasks(limit, offset int) ([]models.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.Query(`
		SELECT id, input, status, strategy, error_message, cancel_requested, version, created_at, updated_at, completed_at
		FROM tasks ORDER BY created_at DESC, id LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// SaveTaskTransition persists a task state change with optimistic
// versioning and appends the matching audit row in the same transaction.
// The task must carry the new state; from is the status being left.
// On success the task's Version is bumped to match the stored row.
func (db *DB) SaveTaskTransition(t *models.Task, from models.TaskStatus, detail string) error {
	t.UpdatedAt = time.Now().UTC()

	err := db.Transaction(func(tx *sql.Tx) error {
		var completedAt *string
		if t.CompletedAt != nil {
			s := formatTime(*t.CompletedAt)
			completedAt = &s
		}

		res, err := tx.Exec(`
			UPDATE tasks SET status = ?, strategy = ?, error_message = ?, updated_at = ?, completed_at = ?, version = version + 1
			WHERE id = ? AND version = ?
		`, string(t.Status), marshalStrategy(t.Strategy), t.ErrorMessage, formatTime(t.UpdatedAt), completedAt, t.ID, t.Version)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return staleTaskErr(tx, t.ID)
		}

		return insertTransition(tx, t.ID, "", EntityTask, string(from), string(t.Status), detail)
	})
	if err != nil {
		return err
	}

	t.Version++
	return nil
}

// MaterializePlan atomically stores the resolved strategy, inserts the
// step records in plan order, and moves the task out of pending. Either
// everything becomes durable or nothing does.
func (db *DB) MaterializePlan(t *models.Task, steps []models.Step) error {
	t.UpdatedAt = time.Now().UTC()

	err := db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE tasks SET status = ?, strategy = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?
		`, string(t.Status), marshalStrategy(t.Strategy), formatTime(t.UpdatedAt), t.ID, t.Version)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return staleTaskErr(tx, t.ID)
		}

		for i := range steps {
			s := &steps[i]
			s.UpdatedAt = t.UpdatedAt
			args, _ := json.Marshal(s.Args)
			if _, err := tx.Exec(`
				INSERT INTO steps (id, task_id, step_number, instruction, tool, args, status, result, error, retry_count, created_at, updated_at, completed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, s.ID, s.TaskID, s.StepNumber, s.Instruction, s.Tool, string(args), string(s.Status), s.Result, s.Error, s.RetryCount, formatTime(s.CreatedAt), formatTime(s.UpdatedAt), nil); err != nil {
				return fmt.Errorf("create step %d: %w", s.StepNumber, err)
			}
		}

		return insertTransition(tx, t.ID, "", EntityTask, string(models.TaskStatusPending), string(t.Status),
			fmt.Sprintf("plan materialized with %d steps", len(steps)))
	})
	if err != nil {
		return err
	}

	t.Version++
	return nil
}

// SaveStepTransition persists a step state change and appends the
// matching audit row in the same transaction.
func (db *DB) SaveStepTransition(s *models.Step, from models.StepStatus, detail string) error {
	s.UpdatedAt = time.Now().UTC()

	return db.Transaction(func(tx *sql.Tx) error {
		var completedAt *string
		if s.CompletedAt != nil {
			str := formatTime(*s.CompletedAt)
			completedAt = &str
		}

		res, err := tx.Exec(`
			UPDATE steps SET status = ?, result = ?, error = ?, retry_count = ?, updated_at = ?, completed_at = ?
			WHERE id = ?
		`, string(s.Status), s.Result, s.Error, s.RetryCount, formatTime(s.UpdatedAt), completedAt, s.ID)
		if err != nil {
			return fmt.Errorf("update step: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("update step %s: %w", s.ID, ErrNotFound)
		}

		return insertTransition(tx, s.TaskID, s.ID, EntityStep, string(from), string(s.Status), detail)
	})
}

// ListSteps returns a task's steps in execution order.
func (db *DB) ListSteps(taskID string) ([]models.Step, error) {
	rows, err := db.Query(`
		SELECT id, task_id, step_number, instruction, tool, args, status, result, error, retry_count, created_at, updated_at, completed_at
		FROM steps WHERE task_id = ? ORDER BY step_number
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []models.Step
	for rows.Next() {
		var s models.Step
		var args, result, errText sql.NullString
		var createdAt, updatedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.TaskID, &s.StepNumber, &s.Instruction, &s.Tool, &args, &s.Status, &result, &errText, &s.RetryCount, &createdAt, &updatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if args.Valid && args.String != "" && args.String != "null" {
			json.Unmarshal([]byte(args.String), &s.Args)
		}
		if result.Valid {
			s.Result = result.String
		}
		if errText.Valid {
			s.Error = errText.String
		}
		s.CreatedAt, _ = parseTime(createdAt)
		s.UpdatedAt, _ = parseTime(updatedAt)
		s.CompletedAt = parseNullableTime(completedAt)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// RequestCancel durably marks a task for cancellation. The flag is
// write-once from the caller's side; the orchestrator reads it between
// steps. Status updates never touch this column, so the flag cannot be
// lost to a concurrent transition.
func (db *DB) RequestCancel(id string) error {
	res, err := db.Exec(`
		UPDATE tasks SET cancel_requested = 1, updated_at = ? WHERE id = ?
	`, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("request cancel %s: %w", id, ErrNotFound)
	}
	return nil
}

// CancelRequested reports whether cancellation was requested for a task.
func (db *DB) CancelRequested(id string) (bool, error) {
	var flag int
	err := db.QueryRow("SELECT cancel_requested FROM tasks WHERE id = ?", id).Scan(&flag)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("cancel requested %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("cancel requested: %w", err)
	}
	return flag != 0, nil
}

// ListTransitions returns the audit log for a task, oldest first.
func (db *DB) ListTransitions(taskID string) ([]Transition, error) {
	rows, err := db.Query(`
		SELECT id, task_id, step_id, entity, from_status, to_status, detail, created_at
		FROM transitions WHERE task_id = ? ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []Transition
	for rows.Next() {
		var tr Transition
		var stepID, detail sql.NullString
		var createdAt string
		if err := rows.Scan(&tr.ID, &tr.TaskID, &stepID, &tr.Entity, &tr.FromStatus, &tr.ToStatus, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if stepID.Valid {
			tr.StepID = stepID.String
		}
		if detail.Valid {
			tr.Detail = detail.String
		}
		tr.CreatedAt, _ = parseTime(createdAt)
		transitions = append(transitions, tr)
	}
	return transitions, rows.Err()
}

// insertTransition appends one audit row inside an open transaction.
func insertTransition(tx *sql.Tx, taskID, stepID, entity, from, to, detail string) error {
	var stepRef *string
	if stepID != "" {
		stepRef = &stepID
	}
	_, err := tx.Exec(`
		INSERT INTO transitions (task_id, step_id, entity, from_status, to_status, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, taskID, stepRef, entity, from, to, detail, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// staleTaskErr distinguishes a missing row from a lost version race.
func staleTaskErr(tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRow("SELECT 1 FROM tasks WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check task %s: %w", id, err)
	}
	return fmt.Errorf("task %s: %w", id, ErrVersionConflict)
}

// scanTask scans one task row via the given scan function.
func scanTask(scan func(...any) error) (*models.Task, error) {
	var t models.Task
	var strategy, errorMessage sql.NullString
	var cancelRequested int
	var createdAt, updatedAt string
	var completedAt sql.NullString

	err := scan(&t.ID, &t.Input, &t.Status, &strategy, &errorMessage, &cancelRequested, &t.Version, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if strategy.Valid && strategy.String != "" {
		var st models.Strategy
		if err := json.Unmarshal([]byte(strategy.String), &st); err == nil {
			t.Strategy = &st
		}
	}
	if errorMessage.Valid {
		t.ErrorMessage = errorMessage.String
	}
	t.CancelRequested = cancelRequested != 0
	t.CreatedAt, _ = parseTime(createdAt)
	t.UpdatedAt, _ = parseTime(updatedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}

// marshalStrategy encodes a strategy for its blob column. Nil stays NULL.
func marshalStrategy(s *models.Strategy) *string {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	str := string(b)
	return &str
}

// boolToInt converts a bool for an INTEGER column.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
