package state

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/foremanhq/foreman/pkg/models"
)

func newTask(input string) *models.Task {
	now := time.Now().UTC()
	return &models.Task{
		ID:        uuid.New().String(),
		Input:     input,
		Status:    models.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newStep(taskID string, number int, tool string) models.Step {
	now := time.Now().UTC()
	return models.Step{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		StepNumber:  number,
		Instruction: "do the thing",
		Tool:        tool,
		Args:        map[string]any{"path": "/tmp/x"},
		Status:      models.StepStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateAndGetTask(t *testing.T) {
	db := newTestDB(t)

	task := newTask("summarize the report")
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	got, err := db.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetTask() returned nil")
	}
	if got.Input != task.Input {
		t.Errorf("Input = %q, want %q", got.Input, task.Input)
	}
	if got.Status != models.TaskStatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Version != 0 {
		t.Errorf("Version = %d, want 0", got.Version)
	}
	if got.Strategy != nil {
		t.Errorf("Strategy = %+v, want nil", got.Strategy)
	}
	if got.CancelRequested {
		t.Error("CancelRequested = true, want false")
	}
	if got.CompletedAt != nil {
		t.Errorf("CompletedAt = %v, want nil", got.CompletedAt)
	}
}

func TestGetTaskMissing(t *testing.T) {
	db := newTestDB(t)

	got, err := db.GetTask("no-such-id")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetTask() = %+v, want nil", got)
	}
}

func TestSaveTaskTransition(t *testing.T) {
	db := newTestDB(t)

	task := newTask("run the pipeline")
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	task.Status = models.TaskStatusRunning
	if err := db.SaveTaskTransition(task, models.TaskStatusPending, "picked up by worker"); err != nil {
		t.Fatalf("SaveTaskTransition() error = %v", err)
	}
	if task.Version != 1 {
		t.Errorf("Version after transition = %d, want 1", task.Version)
	}

	got, err := db.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Status != models.TaskStatusRunning {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.Version != 1 {
		t.Errorf("stored Version = %d, want 1", got.Version)
	}
}

func TestSaveTaskTransitionVersionConflict(t *testing.T) {
	db := newTestDB(t)

	task := newTask("race me")
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	stale := *task
	task.Status = models.TaskStatusRunning
	if err := db.SaveTaskTransition(task, models.TaskStatusPending, ""); err != nil {
		t.Fatalf("SaveTaskTransition() error = %v", err)
	}

	stale.Status = models.TaskStatusFailed
	err := db.SaveTaskTransition(&stale, models.TaskStatusPending, "")
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale transition error = %v, want ErrVersionConflict", err)
	}

	got, _ := db.GetTask(task.ID)
	if got.Status != models.TaskStatusRunning {
		t.Errorf("Status after lost race = %q, want running", got.Status)
	}
}

func TestSaveTaskTransitionMissing(t *testing.T) {
	db := newTestDB(t)

	task := newTask("ghost")
	task.Status = models.TaskStatusRunning
	err := db.SaveTaskTransition(task, models.TaskStatusPending, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("transition on missing task error = %v, want ErrNotFound", err)
	}
}

func TestMaterializePlan(t *testing.T) {
	db := newTestDB(t)

	task := newTask("fetch and save")
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	task.Status = models.TaskStatusRunning
	task.Strategy = &models.Strategy{
		Category:      models.CategoryFileOps,
		Complexity:    models.ComplexityMedium,
		RequiredTools: []string{"file_read", "file_write"},
	}
	steps := []models.Step{
		newStep(task.ID, 1, "file_read"),
		newStep(task.ID, 2, "file_write"),
	}
	if err := db.MaterializePlan(task, steps); err != nil {
		t.Fatalf("MaterializePlan() error = %v", err)
	}
	if task.Version != 1 {
		t.Errorf("Version = %d, want 1", task.Version)
	}

	got, err := db.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Strategy == nil {
		t.Fatal("Strategy not persisted")
	}
	if got.Strategy.Complexity != models.ComplexityMedium {
		t.Errorf("Complexity = %q, want medium", got.Strategy.Complexity)
	}

	stored, err := db.ListSteps(task.ID)
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("ListSteps() returned %d steps, want 2", len(stored))
	}
	for i, s := range stored {
		if s.StepNumber != i+1 {
			t.Errorf("step %d has StepNumber %d", i, s.StepNumber)
		}
	}
	if stored[0].Tool != "file_read" || stored[1].Tool != "file_write" {
		t.Errorf("step order wrong: %q, %q", stored[0].Tool, stored[1].Tool)
	}
	if stored[0].Args["path"] != "/tmp/x" {
		t.Errorf("Args not persisted: %+v", stored[0].Args)
	}
}

func TestSaveStepTransition(t *testing.T) {
	db := newTestDB(t)

	task := newTask("one step")
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	task.Status = models.TaskStatusRunning
	steps := []models.Step{newStep(task.ID, 1, "file_read")}
	if err := db.MaterializePlan(task, steps); err != nil {
		t.Fatalf("MaterializePlan() error = %v", err)
	}

	step := steps[0]
	step.Status = models.StepStatusRunning
	step.RetryCount = 1
	if err := db.SaveStepTransition(&step, models.StepStatusFailed, "retrying after timeout"); err != nil {
		t.Fatalf("SaveStepTransition() error = %v", err)
	}

	now := time.Now().UTC()
	step.Status = models.StepStatusCompleted
	step.Result = "file contents"
	step.CompletedAt = &now
	if err := db.SaveStepTransition(&step, models.StepStatusRunning, ""); err != nil {
		t.Fatalf("SaveStepTransition() error = %v", err)
	}

	stored, err := db.ListSteps(task.ID)
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	got := stored[0]
	if got.Status != models.StepStatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
	if got.Result != "file contents" {
		t.Errorf("Result = %q", got.Result)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not persisted")
	}
}

func TestSaveStepTransitionMissing(t *testing.T) {
	db := newTestDB(t)

	step := newStep("no-task", 1, "file_read")
	step.Status = models.StepStatusRunning
	err := db.SaveStepTransition(&step, models.StepStatusPending, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("transition on missing step error = %v, want ErrNotFound", err)
	}
}

func TestRequestCancel(t *testing.T) {
	db := newTestDB(t)

	task := newTask("cancel me")
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if err := db.RequestCancel(task.ID); err != nil {
		t.Fatalf("RequestCancel() error = %v", err)
	}

	flagged, err := db.CancelRequested(task.ID)
	if err != nil {
		t.Fatalf("CancelRequested() error = %v", err)
	}
	if !flagged {
		t.Error("CancelRequested() = false after RequestCancel")
	}

	// A status transition racing the flag must not clear it.
	task.Status = models.TaskStatusRunning
	if err := db.SaveTaskTransition(task, models.TaskStatusPending, ""); err != nil {
		t.Fatalf("SaveTaskTransition() error = %v", err)
	}
	flagged, _ = db.CancelRequested(task.ID)
	if !flagged {
		t.Error("cancel flag lost after status transition")
	}
}

func TestRequestCancelMissing(t *testing.T) {
	db := newTestDB(t)

	if err := db.RequestCancel("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RequestCancel() error = %v, want ErrNotFound", err)
	}
}

func TestListTasks(t *testing.T) {
	db := newTestDB(t)

	base := time.Now().UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		task := newTask("task")
		task.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := db.CreateTask(task); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
		ids = append(ids, task.ID)
	}

	tasks, err := db.ListTasks(0, 0)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("ListTasks() returned %d tasks, want 3", len(tasks))
	}
	if tasks[0].ID != ids[2] {
		t.Errorf("first task = %s, want newest %s", tasks[0].ID, ids[2])
	}

	page, err := db.ListTasks(1, 1)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(page) != 1 || page[0].ID != ids[1] {
		t.Errorf("paged ListTasks(1, 1) = %+v, want middle task %s", page, ids[1])
	}
}

func TestListTransitions(t *testing.T) {
	db := newTestDB(t)

	task := newTask("audited")
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	task.Status = models.TaskStatusRunning
	steps := []models.Step{newStep(task.ID, 1, "file_read")}
	if err := db.MaterializePlan(task, steps); err != nil {
		t.Fatalf("MaterializePlan() error = %v", err)
	}
	step := steps[0]
	step.Status = models.StepStatusRunning
	if err := db.SaveStepTransition(&step, models.StepStatusPending, "attempt 1"); err != nil {
		t.Fatalf("SaveStepTransition() error = %v", err)
	}

	log, err := db.ListTransitions(task.ID)
	if err != nil {
		t.Fatalf("ListTransitions() error = %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("ListTransitions() returned %d rows, want 3", len(log))
	}
	if log[0].Entity != EntityTask || log[0].ToStatus != "pending" {
		t.Errorf("first row = %+v, want task creation", log[0])
	}
	if log[1].Entity != EntityTask || log[1].ToStatus != "running" {
		t.Errorf("second row = %+v, want plan materialization", log[1])
	}
	if log[2].Entity != EntityStep || log[2].StepID != step.ID {
		t.Errorf("third row = %+v, want step transition", log[2])
	}
	if log[2].Detail != "attempt 1" {
		t.Errorf("Detail = %q, want %q", log[2].Detail, "attempt 1")
	}
}
