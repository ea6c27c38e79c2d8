package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/marcus/dispatch/internal/tasks"
)

// AddComment appends a comment to an existing task, plus an activity noting
// it. A missing task fails with store.ErrNotFound and records nothing.
func (s *Service) AddComment(ctx context.Context, taskID int64, text, author string) error {
	if _, err := s.store.Get(ctx, taskID); err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	if _, err := s.log.AddComment(ctx, taskID, text, author); err != nil {
		return fmt.Errorf("add comment to task %d: %w", taskID, err)
	}
	return s.record(ctx, taskID, fmt.Sprintf("%s added a comment.", author))
}

// GetTaskDetails returns a task with its comments and activities, each
// sorted by timestamp. Entries with equal timestamps keep insertion order.
func (s *Service) GetTaskDetails(ctx context.Context, taskID int64) (*tasks.TaskDetails, error) {
	t, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task details: %w", err)
	}
	comments, err := s.log.Comments(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("comments for task %d: %w", taskID, err)
	}
	activities, err := s.log.Activities(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("activities for task %d: %w", taskID, err)
	}

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].Timestamp < comments[j].Timestamp
	})
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Timestamp < activities[j].Timestamp
	})

	if comments == nil {
		comments = []tasks.Comment{}
	}
	if activities == nil {
		activities = []tasks.Activity{}
	}
	return &tasks.TaskDetails{Task: t, Comments: comments, Activities: activities}, nil
}
