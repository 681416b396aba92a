package state

import (
	"fmt"

	"github.com/foremanhq/foreman/pkg/models"
)

// ListInterrupted returns tasks left unfinished by a previous process:
// anything still pending or running on disk. Pending tasks are simply
// re-queued; running tasks resume at their first non-terminal step,
// with the interrupted attempt counted against that step's retry budget.
func (db *DB) ListInterrupted() ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT id, input, status, strategy, error_message, cancel_requested, version, created_at, updated_at, completed_at
		FROM tasks WHERE status IN (?, ?) ORDER BY created_at, id
	`, string(models.TaskStatusPending), string(models.TaskStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("list interrupted: %w", err)
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
