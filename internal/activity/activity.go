// Package activity keeps the append-only comment and activity history of
// tasks, indexed by task id.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/dispatch/internal/tasks"
)

// Log records comments and system activities. Entries are immutable once
// appended; listings preserve insertion order.
type Log interface {
	AddComment(ctx context.Context, taskID int64, text, author string) (tasks.Comment, error)
	AddActivity(ctx context.Context, taskID int64, description string) (tasks.Activity, error)
	Comments(ctx context.Context, taskID int64) ([]tasks.Comment, error)
	Activities(ctx context.Context, taskID int64) ([]tasks.Activity, error)
}

// Clock returns the current time in epoch milliseconds.
type Clock func() int64

func systemClock() int64 {
	return time.Now().UnixMilli()
}

func newID() string {
	return uuid.New().String()
}
