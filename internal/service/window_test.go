package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/dispatch/internal/tasks"
)

func deadlined(assignee, deadline int64, status tasks.TaskStatus) *tasks.Task {
	return &tasks.Task{
		ReferenceID:   1,
		ReferenceType: tasks.ReferenceOrder,
		Type:          "PICKUP",
		AssigneeID:    assignee,
		Status:        status,
		Deadline:      deadline,
	}
}

func TestFetchTasksByDateCarryOver(t *testing.T) {
	svc, st, _ := newTestService()
	saved := seed(t, st,
		deadlined(1, 100, tasks.StatusAssigned),
		deadlined(1, 500, tasks.StatusAssigned),
		deadlined(1, 1000, tasks.StatusAssigned),
	)

	got, err := svc.FetchTasksByDate(context.Background(), []int64{1}, 200, 800)
	require.NoError(t, err)
	assert.Equal(t, []int64{saved[0].ID, saved[1].ID}, ids(got))
}

func TestFetchTasksByDateBoundaries(t *testing.T) {
	const start, end = 200, 800
	tests := []struct {
		name     string
		deadline int64
		status   tasks.TaskStatus
		want     bool
	}{
		{"overdue open", start - 1, tasks.StatusAssigned, true},
		{"overdue started", start - 1, tasks.StatusStarted, true},
		{"overdue completed", start - 1, tasks.StatusCompleted, false},
		{"overdue cancelled", start - 1, tasks.StatusCancelled, false},
		{"at start", start, tasks.StatusAssigned, true},
		{"at end", end, tasks.StatusAssigned, true},
		{"inside cancelled", 500, tasks.StatusCancelled, false},
		{"inside completed", 500, tasks.StatusCompleted, false},
		{"after end", end + 1, tasks.StatusAssigned, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, st, _ := newTestService()
			seed(t, st, deadlined(1, tc.deadline, tc.status))

			got, err := svc.FetchTasksByDate(context.Background(), []int64{1}, start, end)
			require.NoError(t, err)
			assert.Equal(t, tc.want, len(got) == 1)
		})
	}
}

func TestFetchTasksByDateAssigneeFilter(t *testing.T) {
	svc, st, _ := newTestService()
	saved := seed(t, st,
		deadlined(1, 300, tasks.StatusAssigned),
		deadlined(2, 300, tasks.StatusAssigned),
		deadlined(3, 300, tasks.StatusAssigned),
	)
	ctx := context.Background()

	got, err := svc.FetchTasksByDate(ctx, []int64{3, 1}, 200, 800)
	require.NoError(t, err)
	assert.Equal(t, []int64{saved[0].ID, saved[2].ID}, ids(got))

	none, err := svc.FetchTasksByDate(ctx, nil, 200, 800)
	require.NoError(t, err)
	assert.Empty(t, none)
}
