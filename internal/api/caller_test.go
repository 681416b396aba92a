package api

import "testing"

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Add(20, 10)

	input, output := tracker.Total()
	if input != 120 || output != 60 {
		t.Errorf("Total() = (%d, %d), want (120, 60)", input, output)
	}
	if tracker.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", tracker.Calls())
	}

	tracker.Reset()
	input, output = tracker.Total()
	if input != 0 || output != 0 || tracker.Calls() != 0 {
		t.Errorf("after Reset: Total() = (%d, %d), Calls() = %d, want zeros", input, output, tracker.Calls())
	}
}
