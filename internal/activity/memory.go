package activity

import (
	"context"
	"sync"

	"github.com/marcus/dispatch/internal/tasks"
)

// Memory is an in-process Log.
type Memory struct {
	mu         sync.RWMutex
	comments   map[int64][]tasks.Comment
	activities map[int64][]tasks.Activity
	now        Clock
}

// NewMemory returns an empty log. A nil clock reads the wall clock.
func NewMemory(now Clock) *Memory {
	if now == nil {
		now = systemClock
	}
	return &Memory{
		comments:   make(map[int64][]tasks.Comment),
		activities: make(map[int64][]tasks.Activity),
		now:        now,
	}
}

func (m *Memory) AddComment(_ context.Context, taskID int64, text, author string) (tasks.Comment, error) {
	c := tasks.Comment{
		ID:        newID(),
		TaskID:    taskID,
		Text:      text,
		Author:    author,
		Timestamp: m.now(),
	}
	m.mu.Lock()
	m.comments[taskID] = append(m.comments[taskID], c)
	m.mu.Unlock()
	return c, nil
}

func (m *Memory) AddActivity(_ context.Context, taskID int64, description string) (tasks.Activity, error) {
	a := tasks.Activity{
		ID:          newID(),
		TaskID:      taskID,
		Description: description,
		Timestamp:   m.now(),
	}
	m.mu.Lock()
	m.activities[taskID] = append(m.activities[taskID], a)
	m.mu.Unlock()
	return a, nil
}

func (m *Memory) Comments(_ context.Context, taskID int64) ([]tasks.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]tasks.Comment(nil), m.comments[taskID]...), nil
}

func (m *Memory) Activities(_ context.Context, taskID int64) ([]tasks.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]tasks.Activity(nil), m.activities[taskID]...), nil
}
