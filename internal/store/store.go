// Package store persists tasks. Every backend returns sequences in ascending
// id order and hands out copies, so callers may mutate results freely until
// they Save them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/marcus/dispatch/internal/tasks"
)

// ErrNotFound is returned when a task id does not exist.
var ErrNotFound = errors.New("task not found")

// Store is the persistence contract for tasks.
type Store interface {
	Get(ctx context.Context, id int64) (*tasks.Task, error)
	FindByReference(ctx context.Context, refID int64, refType tasks.ReferenceType) ([]*tasks.Task, error)
	FindByAssigneeIn(ctx context.Context, assigneeIDs []int64) ([]*tasks.Task, error)
	FindByPriority(ctx context.Context, p tasks.Priority) ([]*tasks.Task, error)
	// Save inserts a task with ID 0 and updates one with a known ID. It
	// stamps CreatedAt on insert and UpdatedAt always, and returns the
	// stored copy.
	Save(ctx context.Context, t *tasks.Task) (*tasks.Task, error)
}

// Clock returns the current time in epoch milliseconds.
type Clock func() int64

// SystemClock reads the wall clock.
func SystemClock() int64 {
	return time.Now().UnixMilli()
}
