package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/dispatch/internal/db"
	"github.com/marcus/dispatch/internal/tasks"
)

// stepClock advances one millisecond per call.
func stepClock(start int64) Clock {
	now := start
	return func() int64 {
		now++
		return now
	}
}

func newSQLiteStore(t *testing.T, now Clock) Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "dispatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewSQLite(database, now)
}

func backends() map[string]func(*testing.T, Clock) Store {
	return map[string]func(*testing.T, Clock) Store{
		"memory": func(_ *testing.T, now Clock) Store { return NewMemory(now) },
		"sqlite": newSQLiteStore,
	}
}

func newTask(refID int64, refType tasks.ReferenceType, typ tasks.TaskType, assignee int64) *tasks.Task {
	return &tasks.Task{
		ReferenceID:   refID,
		ReferenceType: refType,
		Type:          typ,
		AssigneeID:    assignee,
		Priority:      tasks.PriorityMedium,
		Status:        tasks.StatusAssigned,
		Description:   "New task created.",
	}
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			runContract(t, open(t, stepClock(1000)))
		})
	}
}

func runContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("save assigns ids and timestamps", func(t *testing.T) {
		first, err := s.Save(ctx, newTask(1, tasks.ReferenceOrder, "PICKUP", 7))
		require.NoError(t, err)
		second, err := s.Save(ctx, newTask(1, tasks.ReferenceOrder, "DELIVERY", 7))
		require.NoError(t, err)

		assert.NotZero(t, first.ID)
		assert.Greater(t, second.ID, first.ID)
		assert.NotZero(t, first.CreatedAt)
		assert.Equal(t, first.CreatedAt, first.UpdatedAt)
	})

	t.Run("update keeps created_at", func(t *testing.T) {
		saved, err := s.Save(ctx, newTask(2, tasks.ReferenceEntity, tasks.TypeAssignCustomerToSalesPerson, 3))
		require.NoError(t, err)

		saved.Status = tasks.StatusStarted
		updated, err := s.Save(ctx, saved)
		require.NoError(t, err)
		assert.Equal(t, saved.CreatedAt, updated.CreatedAt)
		assert.Greater(t, updated.UpdatedAt, saved.UpdatedAt)

		got, err := s.Get(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, tasks.StatusStarted, got.Status)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, 9999)
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})

	t.Run("save unknown id", func(t *testing.T) {
		ghost := newTask(3, tasks.ReferenceOrder, "PICKUP", 1)
		ghost.ID = 9999
		_, err := s.Save(ctx, ghost)
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})

	t.Run("results are copies", func(t *testing.T) {
		saved, err := s.Save(ctx, newTask(4, tasks.ReferenceOrder, "PICKUP", 1))
		require.NoError(t, err)
		saved.Status = tasks.StatusCancelled

		got, err := s.Get(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, tasks.StatusAssigned, got.Status)
	})

	t.Run("find by reference in id order", func(t *testing.T) {
		var want []int64
		for _, typ := range []tasks.TaskType{"C", "A", "B"} {
			saved, err := s.Save(ctx, newTask(5, tasks.ReferenceOrder, typ, 1))
			require.NoError(t, err)
			want = append(want, saved.ID)
		}
		_, err := s.Save(ctx, newTask(5, tasks.ReferenceEntity, "A", 1))
		require.NoError(t, err)

		got, err := s.FindByReference(ctx, 5, tasks.ReferenceOrder)
		require.NoError(t, err)
		assert.Equal(t, want, ids(got))
	})

	t.Run("find by assignee", func(t *testing.T) {
		a, err := s.Save(ctx, newTask(6, tasks.ReferenceOrder, "A", 100))
		require.NoError(t, err)
		_, err = s.Save(ctx, newTask(6, tasks.ReferenceOrder, "B", 101))
		require.NoError(t, err)
		c, err := s.Save(ctx, newTask(6, tasks.ReferenceOrder, "C", 102))
		require.NoError(t, err)

		got, err := s.FindByAssigneeIn(ctx, []int64{102, 100})
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID, c.ID}, ids(got))

		none, err := s.FindByAssigneeIn(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("find by priority", func(t *testing.T) {
		high := newTask(7, tasks.ReferenceOrder, "A", 1)
		high.Priority = tasks.PriorityHigh
		saved, err := s.Save(ctx, high)
		require.NoError(t, err)

		got, err := s.FindByPriority(ctx, tasks.PriorityHigh)
		require.NoError(t, err)
		assert.Equal(t, []int64{saved.ID}, ids(got))
	})
}

func ids(ts []*tasks.Task) []int64 {
	out := make([]int64, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestMemoryLen(t *testing.T) {
	m := NewMemory(nil)
	assert.Equal(t, 0, m.Len())
	_, err := m.Save(context.Background(), newTask(1, tasks.ReferenceOrder, "A", 1))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestSaveNil(t *testing.T) {
	_, err := NewMemory(nil).Save(context.Background(), nil)
	assert.Error(t, err)
}
