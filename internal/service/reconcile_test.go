package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/dispatch/internal/activity"
	"github.com/marcus/dispatch/internal/store"
	"github.com/marcus/dispatch/internal/tasks"
)

func TestAssignByReferenceCreatesOnePerSlot(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	msg, err := svc.AssignByReference(ctx, 1, tasks.ReferenceOrder, 42)
	require.NoError(t, err)
	assert.Equal(t, "Tasks assigned successfully for reference 1", msg)

	got, err := st.FindByReference(ctx, 1, tasks.ReferenceOrder)
	require.NoError(t, err)
	require.Len(t, got, 2)

	slots := map[tasks.TaskType]bool{}
	for _, task := range got {
		assert.Equal(t, tasks.StatusAssigned, task.Status)
		assert.Equal(t, int64(42), task.AssigneeID)
		assert.Equal(t, tasks.PriorityMedium, task.Priority)
		assert.Equal(t, DefaultDescription, task.Description)
		slots[task.Type] = true
	}
	assert.Equal(t, map[tasks.TaskType]bool{"PICKUP": true, "DELIVERY": true}, slots)
}

func TestAssignByReferenceCreatesNForEveryRegistrySize(t *testing.T) {
	tests := []struct {
		name  string
		slots []tasks.TaskType
	}{
		{"none", nil},
		{"one", []tasks.TaskType{"A"}},
		{"three", []tasks.TaskType{"A", "B", "C"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := tasks.NewRegistry(map[tasks.ReferenceType][]tasks.TaskType{tasks.ReferenceEntity: tc.slots})
			svc, st, _ := newTestService(WithRegistry(reg))
			ctx := context.Background()

			_, err := svc.AssignByReference(ctx, 8, tasks.ReferenceEntity, 1)
			require.NoError(t, err)

			got, err := st.FindByReference(ctx, 8, tasks.ReferenceEntity)
			require.NoError(t, err)
			assert.Len(t, got, len(tc.slots))
		})
	}
}

func TestAssignByReferenceIdempotent(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AssignByReference(ctx, 1, tasks.ReferenceOrder, 7)
	require.NoError(t, err)
	first, err := st.FindByReference(ctx, 1, tasks.ReferenceOrder)
	require.NoError(t, err)

	_, err = svc.AssignByReference(ctx, 1, tasks.ReferenceOrder, 7)
	require.NoError(t, err)
	second, err := st.FindByReference(ctx, 1, tasks.ReferenceOrder)
	require.NoError(t, err)

	assert.Len(t, active(second), 2)
	assert.Equal(t, ids(first), ids(second))
}

func TestAssignByReferenceDeduplicates(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()
	saved := seed(t, st,
		orderTask(1, "PICKUP", tasks.StatusStarted, 3),
		orderTask(1, "PICKUP", tasks.StatusAssigned, 4),
		orderTask(1, "PICKUP", tasks.StatusAssigned, 5),
		orderTask(1, "PICKUP", tasks.StatusCompleted, 6),
		orderTask(1, "DELIVERY", tasks.StatusAssigned, 9),
	)

	_, err := svc.AssignByReference(ctx, 1, tasks.ReferenceOrder, 42)
	require.NoError(t, err)

	want := map[int64]struct {
		status   tasks.TaskStatus
		assignee int64
	}{
		saved[0].ID: {tasks.StatusAssigned, 42},
		saved[1].ID: {tasks.StatusCancelled, 4},
		saved[2].ID: {tasks.StatusCancelled, 5},
		saved[3].ID: {tasks.StatusCompleted, 6},
		saved[4].ID: {tasks.StatusAssigned, 42},
	}
	for id, w := range want {
		got, err := st.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, w.status, got.Status, "task %d status", id)
		assert.Equal(t, w.assignee, got.AssigneeID, "task %d assignee", id)
	}
	assert.Equal(t, 5, st.Len(), "no new tasks when every slot has a candidate")
}

func TestAssignByReferenceExactlyOneActivePerSlot(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		seed(t, st, orderTask(2, "DELIVERY", tasks.StatusAssigned, int64(i)))
	}

	_, err := svc.AssignByReference(ctx, 2, tasks.ReferenceOrder, 1)
	require.NoError(t, err)

	got, err := st.FindByReference(ctx, 2, tasks.ReferenceOrder)
	require.NoError(t, err)
	perSlot := map[tasks.TaskType]int{}
	for _, task := range active(got) {
		perSlot[task.Type]++
	}
	assert.Equal(t, map[tasks.TaskType]int{"PICKUP": 1, "DELIVERY": 1}, perSlot)
}

func TestAssignByReferenceCancelledCandidates(t *testing.T) {
	tests := []struct {
		name          string
		skipCancelled bool
		wantRevived   bool
		wantTotal     int
	}{
		{"cancelled task is revived by default", false, true, 2},
		{"cancelled task is skipped when configured", true, false, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, st, _ := newTestService(WithSkipCancelled(tc.skipCancelled))
			ctx := context.Background()
			saved := seed(t, st, orderTask(1, "PICKUP", tasks.StatusCancelled, 3))

			_, err := svc.AssignByReference(ctx, 1, tasks.ReferenceOrder, 8)
			require.NoError(t, err)

			old, err := st.Get(ctx, saved[0].ID)
			require.NoError(t, err)
			if tc.wantRevived {
				assert.Equal(t, tasks.StatusAssigned, old.Status)
				assert.Equal(t, int64(8), old.AssigneeID)
			} else {
				assert.Equal(t, tasks.StatusCancelled, old.Status)
			}
			assert.Equal(t, tc.wantTotal, st.Len())
		})
	}
}

func TestAssignByReferenceIgnoresOtherReferences(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()
	other := seed(t, st,
		orderTask(2, "PICKUP", tasks.StatusAssigned, 3),
		&tasks.Task{ReferenceID: 1, ReferenceType: tasks.ReferenceEntity, Type: "PICKUP", Status: tasks.StatusAssigned, AssigneeID: 3},
	)

	_, err := svc.AssignByReference(ctx, 1, tasks.ReferenceOrder, 9)
	require.NoError(t, err)

	for _, o := range other {
		got, err := st.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.AssigneeID)
	}
}

func TestAssignByReferenceRecordsActivities(t *testing.T) {
	svc, st, log := newTestService()
	ctx := context.Background()
	saved := seed(t, st,
		orderTask(1, "PICKUP", tasks.StatusAssigned, 1),
		orderTask(1, "PICKUP", tasks.StatusAssigned, 1),
	)

	_, err := svc.AssignByReference(ctx, 1, tasks.ReferenceOrder, 5)
	require.NoError(t, err)

	survivor, err := log.Activities(ctx, saved[0].ID)
	require.NoError(t, err)
	require.Len(t, survivor, 1)
	assert.Equal(t, "Assigned to 5 by reference reconciliation.", survivor[0].Description)

	dup, err := log.Activities(ctx, saved[1].ID)
	require.NoError(t, err)
	require.Len(t, dup, 1)
	assert.Equal(t, fmt.Sprintf("Cancelled as duplicate of task %d.", saved[0].ID), dup[0].Description)

	delivery, err := st.FindByReference(ctx, 1, tasks.ReferenceOrder)
	require.NoError(t, err)
	created, err := log.Activities(ctx, delivery[len(delivery)-1].ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Created by reference reconciliation.", created[0].Description)
}

func TestAssignByReferenceRepeatKeepsDuplicateHistory(t *testing.T) {
	svc, st, log := newTestService()
	ctx := context.Background()
	saved := seed(t, st,
		orderTask(1, "PICKUP", tasks.StatusAssigned, 1),
		orderTask(1, "PICKUP", tasks.StatusAssigned, 1),
		orderTask(1, "PICKUP", tasks.StatusAssigned, 1),
	)

	for i := 0; i < 3; i++ {
		_, err := svc.AssignByReference(ctx, 1, tasks.ReferenceOrder, 5)
		require.NoError(t, err)
	}

	for _, dup := range saved[1:] {
		got, err := st.Get(ctx, dup.ID)
		require.NoError(t, err)
		assert.Equal(t, tasks.StatusCancelled, got.Status)

		acts, err := log.Activities(ctx, dup.ID)
		require.NoError(t, err)
		require.Len(t, acts, 1, "task %d should be recorded as cancelled once", dup.ID)
		assert.Equal(t, fmt.Sprintf("Cancelled as duplicate of task %d.", saved[0].ID), acts[0].Description)
	}
}

func TestAssignByReferenceStoreErrorKeepsEarlierSlots(t *testing.T) {
	mem := store.NewMemory(nil)
	fs := &failingStore{Store: mem, n: 1}
	svc := New(WithStore(fs), WithActivityLog(activity.NewMemory(nil)), WithRegistry(pickupDelivery))
	ctx := context.Background()

	_, err := svc.AssignByReference(ctx, 1, tasks.ReferenceOrder, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDiskFull))

	got, err := mem.FindByReference(ctx, 1, tasks.ReferenceOrder)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tasks.TaskType("PICKUP"), got[0].Type)
}

func TestAssignByReferenceConcurrent(t *testing.T) {
	svc, st, _ := newTestService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(assignee int64) {
			defer wg.Done()
			if _, err := svc.AssignByReference(ctx, 1, tasks.ReferenceOrder, assignee); err != nil {
				t.Errorf("AssignByReference: %v", err)
			}
		}(int64(i))
	}
	wg.Wait()

	got, err := st.FindByReference(ctx, 1, tasks.ReferenceOrder)
	require.NoError(t, err)
	assert.Len(t, got, 2, "serialized reconciliation never creates duplicates")
	assert.Len(t, active(got), 2)
}

type refusingLocker struct{}

func (refusingLocker) Lock(context.Context, string) (func(), error) {
	return nil, context.DeadlineExceeded
}

func TestAssignByReferenceLockError(t *testing.T) {
	svc, st, _ := newTestService(WithLocker(refusingLocker{}))

	_, err := svc.AssignByReference(context.Background(), 1, tasks.ReferenceOrder, 1)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, st.Len())
}

func ids(ts []*tasks.Task) []int64 {
	out := make([]int64, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}
