package models

import "testing"

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name   string
		status TaskStatus
		want   bool
	}{
		{"pending is valid", TaskStatusPending, true},
		{"running is valid", TaskStatusRunning, true},
		{"completed is valid", TaskStatusCompleted, true},
		{"failed is valid", TaskStatusFailed, true},
		{"empty string is invalid", TaskStatus(""), false},
		{"unknown status is invalid", TaskStatus("paused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskStatusPending, false},
		{TaskStatusRunning, false},
		{TaskStatusCompleted, true},
		{TaskStatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("TaskStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestTask_CurrentStep(t *testing.T) {
	task := &Task{
		Steps: []Step{
			{StepNumber: 1, Status: StepStatusCompleted},
			{StepNumber: 2, Status: StepStatusRunning},
			{StepNumber: 3, Status: StepStatusPending},
		},
	}

	got := task.CurrentStep()
	if got == nil {
		t.Fatal("CurrentStep() = nil, want step 2")
	}
	if got.StepNumber != 2 {
		t.Errorf("CurrentStep().StepNumber = %d, want 2", got.StepNumber)
	}
}

func TestTask_CurrentStep_AllTerminal(t *testing.T) {
	task := &Task{
		Steps: []Step{
			{StepNumber: 1, Status: StepStatusCompleted},
			{StepNumber: 2, Status: StepStatusFailed},
		},
	}

	if got := task.CurrentStep(); got != nil {
		t.Errorf("CurrentStep() = step %d, want nil", got.StepNumber)
	}
}

func TestTask_CurrentStep_NoSteps(t *testing.T) {
	task := &Task{}
	if got := task.CurrentStep(); got != nil {
		t.Errorf("CurrentStep() = step %d, want nil", got.StepNumber)
	}
}
