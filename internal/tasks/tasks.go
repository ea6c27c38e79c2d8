// Package tasks defines the task record attached to external business
// references, its closed enums, and the comment/activity records kept
// alongside it.
package tasks

import (
	"errors"
	"fmt"
	"strings"
)

// Parse errors returned by the boundary layers (CLI, MCP).
var (
	ErrInvalidStatus        = errors.New("invalid task status")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrInvalidReferenceType = errors.New("invalid reference type")
	ErrInvalidTaskType      = errors.New("invalid task type")
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusAssigned  TaskStatus = "ASSIGNED"
	StatusStarted   TaskStatus = "STARTED"
	StatusCompleted TaskStatus = "COMPLETED"
	StatusCancelled TaskStatus = "CANCELLED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []TaskStatus{StatusAssigned, StatusStarted, StatusCompleted, StatusCancelled}

// IsTerminal reports whether no further work happens in this status.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive is the complement of IsTerminal.
func (s TaskStatus) IsActive() bool {
	return !s.IsTerminal()
}

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(s string) (TaskStatus, error) {
	v := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range AllStatuses {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Priority is an ordered severity level.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// AllPriorities lists priorities from least to most severe.
var AllPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Rank orders priorities; unknown values rank below LOW.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

// ParsePriority parses a priority name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	v := Priority(strings.ToUpper(strings.TrimSpace(s)))
	for _, p := range AllPriorities {
		if v == p {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// ReferenceType names the kind of external entity a task is attached to.
type ReferenceType string

const (
	ReferenceOrder  ReferenceType = "ORDER"
	ReferenceEntity ReferenceType = "ENTITY"
)

// ParseReferenceType parses a reference type name, case-insensitively.
func ParseReferenceType(s string) (ReferenceType, error) {
	v := ReferenceType(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case ReferenceOrder, ReferenceEntity:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReferenceType, s)
}

// TaskType identifies a slot a reference may require.
type TaskType string

const (
	TypeCreateInvoice               TaskType = "CREATE_INVOICE"
	TypeArrangePickup               TaskType = "ARRANGE_PICKUP"
	TypeCollectPayment              TaskType = "COLLECT_PAYMENT"
	TypeAssignCustomerToSalesPerson TaskType = "ASSIGN_CUSTOMER_TO_SALES_PERSON"
)

// ParseTaskType normalizes a task type name. Any non-empty name is accepted
// since registries may define their own slots.
func ParseTaskType(s string) (TaskType, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTaskType)
	}
	return TaskType(v), nil
}

// Task is a unit of work attached to a reference.
type Task struct {
	ID            int64         `json:"id"`
	ReferenceID   int64         `json:"reference_id"`
	ReferenceType ReferenceType `json:"reference_type"`
	Type          TaskType      `json:"task"`
	AssigneeID    int64         `json:"assignee_id"`
	Priority      Priority      `json:"priority"`
	Status        TaskStatus    `json:"status"`
	Deadline      int64         `json:"task_deadline_time"` // epoch millis
	Description   string        `json:"description"`
	CreatedAt     int64         `json:"created_at"`
	UpdatedAt     int64         `json:"updated_at"`
}

// Clone returns a copy safe to mutate.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Comment is an immutable note left on a task.
type Comment struct {
	ID        string `json:"id"`
	TaskID    int64  `json:"task_id"`
	Text      string `json:"comment"`
	Author    string `json:"author"`
	Timestamp int64  `json:"timestamp"`
}

// Activity is an immutable, system-generated history entry.
type Activity struct {
	ID          string `json:"id"`
	TaskID      int64  `json:"task_id"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
}

// TaskDetails aggregates a task with its comments and activity history.
type TaskDetails struct {
	Task       *Task      `json:"task"`
	Comments   []Comment  `json:"comments"`
	Activities []Activity `json:"activity_history"`
}
