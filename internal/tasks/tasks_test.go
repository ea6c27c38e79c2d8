package tasks

import (
	"errors"
	"testing"
)

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{StatusAssigned, false},
		{StatusStarted, false},
		{StatusCompleted, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
		if got := tt.status.IsActive(); got == tt.want {
			t.Errorf("%s.IsActive() = %v, want %v", tt.status, got, !tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input string
		want  TaskStatus
		err   bool
	}{
		{"ASSIGNED", StatusAssigned, false},
		{"assigned", StatusAssigned, false},
		{" started ", StatusStarted, false},
		{"Completed", StatusCompleted, false},
		{"cancelled", StatusCancelled, false},
		{"done", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.input)
		if tt.err {
			if !errors.Is(err, ErrInvalidStatus) {
				t.Errorf("ParseStatus(%q): want ErrInvalidStatus, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input string
		want  Priority
		err   bool
	}{
		{"low", PriorityLow, false},
		{"MEDIUM", PriorityMedium, false},
		{"High", PriorityHigh, false},
		{"urgent", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePriority(tt.input)
		if tt.err {
			if !errors.Is(err, ErrInvalidPriority) {
				t.Errorf("ParsePriority(%q): want ErrInvalidPriority, got %v", tt.input, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParsePriority(%q) = %s, %v; want %s", tt.input, got, err, tt.want)
		}
	}
}

func TestPriorityRank(t *testing.T) {
	if !(PriorityLow.Rank() < PriorityMedium.Rank() && PriorityMedium.Rank() < PriorityHigh.Rank()) {
		t.Error("priorities not ordered LOW < MEDIUM < HIGH")
	}
	if Priority("BOGUS").Rank() >= PriorityLow.Rank() {
		t.Error("unknown priority should rank below LOW")
	}
}

func TestParseReferenceType(t *testing.T) {
	if got, err := ParseReferenceType("order"); err != nil || got != ReferenceOrder {
		t.Errorf("ParseReferenceType(order) = %s, %v", got, err)
	}
	if got, err := ParseReferenceType("ENTITY"); err != nil || got != ReferenceEntity {
		t.Errorf("ParseReferenceType(ENTITY) = %s, %v", got, err)
	}
	if _, err := ParseReferenceType("shipment"); !errors.Is(err, ErrInvalidReferenceType) {
		t.Errorf("ParseReferenceType(shipment): want ErrInvalidReferenceType, got %v", err)
	}
}

func TestParseTaskType(t *testing.T) {
	if got, err := ParseTaskType(" pickup "); err != nil || got != "PICKUP" {
		t.Errorf("ParseTaskType(pickup) = %s, %v", got, err)
	}
	if _, err := ParseTaskType("  "); !errors.Is(err, ErrInvalidTaskType) {
		t.Errorf("ParseTaskType(blank): want ErrInvalidTaskType, got %v", err)
	}
}

func TestClone(t *testing.T) {
	orig := &Task{ID: 1, Status: StatusAssigned}
	c := orig.Clone()
	c.Status = StatusCancelled
	if orig.Status != StatusAssigned {
		t.Error("Clone shares state with its source")
	}
	var nilTask *Task
	if nilTask.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
