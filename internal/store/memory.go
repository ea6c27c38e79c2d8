package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marcus/dispatch/internal/tasks"
)

// Memory is an in-process Store. Ids start at 1 and increase monotonically.
type Memory struct {
	mu     sync.RWMutex
	tasks  map[int64]*tasks.Task
	nextID int64
	now    Clock
}

// NewMemory returns an empty in-memory store. A nil clock uses SystemClock.
func NewMemory(now Clock) *Memory {
	if now == nil {
		now = SystemClock
	}
	return &Memory{
		tasks:  make(map[int64]*tasks.Task),
		nextID: 1,
		now:    now,
	}
}

// Get returns a copy of the task with the given id.
func (m *Memory) Get(_ context.Context, id int64) (*tasks.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

// FindByReference returns every task attached to a reference.
func (m *Memory) FindByReference(_ context.Context, refID int64, refType tasks.ReferenceType) ([]*tasks.Task, error) {
	return m.filter(func(t *tasks.Task) bool {
		return t.ReferenceID == refID && t.ReferenceType == refType
	}), nil
}

// FindByAssigneeIn returns every task assigned to one of the ids.
func (m *Memory) FindByAssigneeIn(_ context.Context, assigneeIDs []int64) ([]*tasks.Task, error) {
	if len(assigneeIDs) == 0 {
		return nil, nil
	}
	want := make(map[int64]bool, len(assigneeIDs))
	for _, id := range assigneeIDs {
		want[id] = true
	}
	return m.filter(func(t *tasks.Task) bool {
		return want[t.AssigneeID]
	}), nil
}

// FindByPriority returns every task with the given priority.
func (m *Memory) FindByPriority(_ context.Context, p tasks.Priority) ([]*tasks.Task, error) {
	return m.filter(func(t *tasks.Task) bool {
		return t.Priority == p
	}), nil
}

// Save upserts a copy of t.
func (m *Memory) Save(_ context.Context, t *tasks.Task) (*tasks.Task, error) {
	if t == nil {
		return nil, fmt.Errorf("save: nil task")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := t.Clone()
	now := m.now()
	if stored.ID == 0 {
		stored.ID = m.nextID
		m.nextID++
		stored.CreatedAt = now
	} else {
		existing, ok := m.tasks[stored.ID]
		if !ok {
			return nil, fmt.Errorf("save task %d: %w", stored.ID, ErrNotFound)
		}
		stored.CreatedAt = existing.CreatedAt
	}
	stored.UpdatedAt = now
	m.tasks[stored.ID] = stored
	return stored.Clone(), nil
}

// Len returns the number of stored tasks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

func (m *Memory) filter(keep func(*tasks.Task) bool) []*tasks.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*tasks.Task
	for _, t := range m.tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
