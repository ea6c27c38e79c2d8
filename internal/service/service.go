// Package service implements the task operations: reconciliation by
// reference, windowed work queues, comments, and plain CRUD.
package service

import (
	"context"
	"fmt"

	"github.com/marcus/dispatch/internal/activity"
	"github.com/marcus/dispatch/internal/lock"
	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/store"
	"github.com/marcus/dispatch/internal/tasks"
)

// DefaultDescription is given to tasks created without one.
const DefaultDescription = "New task created."

// Service coordinates the task store, the activity log, and the
// per-reference lock.
type Service struct {
	store         store.Store
	log           activity.Log
	locker        lock.Locker
	registry      *tasks.Registry
	skipCancelled bool
	logger        *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStore sets the task store.
func WithStore(s store.Store) Option {
	return func(svc *Service) {
		svc.store = s
	}
}

// WithActivityLog sets the comment/activity log.
func WithActivityLog(l activity.Log) Option {
	return func(svc *Service) {
		svc.log = l
	}
}

// WithLocker sets the per-reference locker.
func WithLocker(l lock.Locker) Option {
	return func(svc *Service) {
		svc.locker = l
	}
}

// WithRegistry sets the slot table used by AssignByReference.
func WithRegistry(r *tasks.Registry) Option {
	return func(svc *Service) {
		svc.registry = r
	}
}

// WithSkipCancelled excludes CANCELLED tasks from reconciliation candidates.
func WithSkipCancelled(skip bool) Option {
	return func(svc *Service) {
		svc.skipCancelled = skip
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(svc *Service) {
		svc.logger = l
	}
}

// New creates a service. Unset collaborators default to in-memory ones and
// the built-in registry.
func New(opts ...Option) *Service {
	svc := &Service{}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.store == nil {
		svc.store = store.NewMemory(nil)
	}
	if svc.log == nil {
		svc.log = activity.NewMemory(nil)
	}
	if svc.locker == nil {
		svc.locker = lock.NewLocal()
	}
	if svc.registry == nil {
		svc.registry = tasks.DefaultRegistry()
	}
	if svc.logger == nil {
		svc.logger = logging.Component("service")
	}
	return svc
}

// Registry returns the slot table in use.
func (s *Service) Registry() *tasks.Registry {
	return s.registry
}

// CreateTaskRequest describes a task to create.
type CreateTaskRequest struct {
	ReferenceID   int64               `json:"reference_id"`
	ReferenceType tasks.ReferenceType `json:"reference_type"`
	Type          tasks.TaskType      `json:"task"`
	AssigneeID    int64               `json:"assignee_id"`
	Priority      tasks.Priority      `json:"priority"`
	Deadline      int64               `json:"task_deadline_time"`
}

// UpdateTaskRequest is a partial update; nil fields are left unchanged.
type UpdateTaskRequest struct {
	TaskID      int64             `json:"task_id"`
	Status      *tasks.TaskStatus `json:"status,omitempty"`
	Description *string           `json:"description,omitempty"`
}

// CreateTasks saves one ASSIGNED task per request, in order. A store error
// aborts the batch; tasks already saved stay saved.
func (s *Service) CreateTasks(ctx context.Context, reqs []CreateTaskRequest) ([]*tasks.Task, error) {
	out := make([]*tasks.Task, 0, len(reqs))
	for _, req := range reqs {
		saved, err := s.store.Save(ctx, &tasks.Task{
			ReferenceID:   req.ReferenceID,
			ReferenceType: req.ReferenceType,
			Type:          req.Type,
			AssigneeID:    req.AssigneeID,
			Priority:      req.Priority,
			Status:        tasks.StatusAssigned,
			Deadline:      req.Deadline,
			Description:   DefaultDescription,
		})
		if err != nil {
			return nil, fmt.Errorf("create task: %w", err)
		}
		out = append(out, saved)
	}
	s.logger.Infof("created %d task(s)", len(out))
	return out, nil
}

// UpdateTasks applies partial updates in order. A missing task aborts the
// batch with store.ErrNotFound; earlier updates stay applied.
func (s *Service) UpdateTasks(ctx context.Context, reqs []UpdateTaskRequest) ([]*tasks.Task, error) {
	out := make([]*tasks.Task, 0, len(reqs))
	for _, req := range reqs {
		t, err := s.store.Get(ctx, req.TaskID)
		if err != nil {
			return nil, fmt.Errorf("update task: %w", err)
		}
		if req.Status != nil {
			t.Status = *req.Status
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		saved, err := s.store.Save(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("update task %d: %w", req.TaskID, err)
		}
		out = append(out, saved)
	}
	return out, nil
}

// UpdateTaskPriority sets the priority of one task.
func (s *Service) UpdateTaskPriority(ctx context.Context, taskID int64, p tasks.Priority) (*tasks.Task, error) {
	t, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("update priority: %w", err)
	}
	t.Priority = p
	saved, err := s.store.Save(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("update priority of task %d: %w", taskID, err)
	}
	return saved, nil
}

// GetTasksByPriority returns every task with priority p, in id order.
func (s *Service) GetTasksByPriority(ctx context.Context, p tasks.Priority) ([]*tasks.Task, error) {
	ts, err := s.store.FindByPriority(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("tasks by priority %s: %w", p, err)
	}
	return ts, nil
}

// GetTask returns a single task.
func (s *Service) GetTask(ctx context.Context, taskID int64) (*tasks.Task, error) {
	t, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}
