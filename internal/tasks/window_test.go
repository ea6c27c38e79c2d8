package tasks

import "testing"

func TestPlace(t *testing.T) {
	const start, end = 200, 800

	tests := []struct {
		name     string
		deadline int64
		status   TaskStatus
		want     Placement
	}{
		{"overdue and open", start - 1, StatusAssigned, CarryOver},
		{"overdue but started", 100, StatusStarted, CarryOver},
		{"overdue but completed", start - 1, StatusCompleted, Excluded},
		{"overdue but cancelled", 100, StatusCancelled, Excluded},
		{"at start", start, StatusAssigned, InRange},
		{"inside", 500, StatusAssigned, InRange},
		{"at end", end, StatusAssigned, InRange},
		{"inside but cancelled", 500, StatusCancelled, Excluded},
		{"inside but completed", 500, StatusCompleted, Excluded},
		{"after end", end + 1, StatusAssigned, Excluded},
		{"far future", 1_000_000, StatusStarted, Excluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Deadline: tt.deadline, Status: tt.status}
			if got := Place(task, start, end); got != tt.want {
				t.Errorf("Place() = %s, want %s", got, tt.want)
			}
			if got := InWindow(task, start, end); got != (tt.want != Excluded) {
				t.Errorf("InWindow() = %v, want %v", got, tt.want != Excluded)
			}
		})
	}
}

func TestPlacementString(t *testing.T) {
	tests := []struct {
		p    Placement
		want string
	}{
		{InRange, "in-range"},
		{CarryOver, "carry-over"},
		{Excluded, "excluded"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Placement(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}
