package activity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/dispatch/internal/db"
	"github.com/marcus/dispatch/internal/store"
	"github.com/marcus/dispatch/internal/tasks"
)

func fixedClock(ts int64) Clock {
	return func() int64 { return ts }
}

// openSQLite returns a log and the ids of two tasks saved in the same database.
func openSQLite(t *testing.T, now Clock) (Log, int64, int64) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "dispatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	s := store.NewSQLite(database, nil)
	var ids []int64
	for i := 0; i < 2; i++ {
		saved, err := s.Save(context.Background(), &tasks.Task{
			ReferenceID:   1,
			ReferenceType: tasks.ReferenceOrder,
			Type:          tasks.TypeCreateInvoice,
			Status:        tasks.StatusAssigned,
		})
		require.NoError(t, err)
		ids = append(ids, saved.ID)
	}
	return NewSQLite(database, now), ids[0], ids[1]
}

func TestLogBackends(t *testing.T) {
	backends := map[string]func(*testing.T, Clock) (Log, int64, int64){
		"memory":   func(_ *testing.T, now Clock) (Log, int64, int64) { return NewMemory(now), 1, 2 },
		"sqlite":   openSQLite,
		"postgres": openPostgres,
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log, taskA, taskB := open(t, fixedClock(500))

			c, err := log.AddComment(ctx, taskA, "call the customer", "ana")
			require.NoError(t, err)
			_, err = uuid.Parse(c.ID)
			assert.NoError(t, err, "comment id should be a uuid")
			assert.Equal(t, int64(500), c.Timestamp)

			_, err = log.AddComment(ctx, taskA, "done", "bo")
			require.NoError(t, err)
			_, err = log.AddActivity(ctx, taskA, "ana added a comment.")
			require.NoError(t, err)
			_, err = log.AddActivity(ctx, taskB, "Created by reference reconciliation.")
			require.NoError(t, err)

			comments, err := log.Comments(ctx, taskA)
			require.NoError(t, err)
			require.Len(t, comments, 2)
			assert.Equal(t, "call the customer", comments[0].Text)
			assert.Equal(t, "bo", comments[1].Author)

			activities, err := log.Activities(ctx, taskA)
			require.NoError(t, err)
			require.Len(t, activities, 1)
			assert.Equal(t, taskA, activities[0].TaskID)

			other, err := log.Comments(ctx, taskB)
			require.NoError(t, err)
			assert.Empty(t, other)

			otherActs, err := log.Activities(ctx, taskB)
			require.NoError(t, err)
			assert.Len(t, otherActs, 1)
		})
	}
}

func TestMemoryListingsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	_, err := m.AddComment(ctx, 1, "a", "x")
	require.NoError(t, err)

	got, err := m.Comments(ctx, 1)
	require.NoError(t, err)
	got[0].Text = "mutated"

	again, err := m.Comments(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].Text)
}
