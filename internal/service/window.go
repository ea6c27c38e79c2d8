package service

import (
	"context"
	"fmt"

	"github.com/marcus/dispatch/internal/tasks"
)

// FetchTasksByDate returns the work queue of the assignees for the inclusive
// window [start, end]: open tasks due inside the window plus open tasks
// already overdue at start. Tasks due after end are left out. Results keep
// store order.
func (s *Service) FetchTasksByDate(ctx context.Context, assigneeIDs []int64, start, end int64) ([]*tasks.Task, error) {
	all, err := s.store.FindByAssigneeIn(ctx, assigneeIDs)
	if err != nil {
		return nil, fmt.Errorf("tasks for assignees: %w", err)
	}

	out := make([]*tasks.Task, 0, len(all))
	for _, t := range all {
		if tasks.InWindow(t, start, end) {
			out = append(out, t)
		}
	}
	s.logger.Debugf("window [%d, %d]: %d of %d task(s) for %d assignee(s)", start, end, len(out), len(all), len(assigneeIDs))
	return out, nil
}
