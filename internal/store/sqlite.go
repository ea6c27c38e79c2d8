package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/marcus/dispatch/internal/db"
	"github.com/marcus/dispatch/internal/tasks"
)

const taskColumns = `id, reference_id, reference_type, task_type, assignee_id, priority,
	status, deadline, description, created_at, updated_at`

// SQLite stores tasks in the dispatch database.
type SQLite struct {
	db  *sql.DB
	now Clock
}

// NewSQLite wraps an open database. A nil clock uses SystemClock.
func NewSQLite(database *db.DB, now Clock) *SQLite {
	if now == nil {
		now = SystemClock
	}
	return &SQLite{db: database.SQL(), now: now}
}

// Get returns the task with the given id.
func (s *SQLite) Get(ctx context.Context, id int64) (*tasks.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// FindByReference returns every task attached to a reference.
func (s *SQLite) FindByReference(ctx context.Context, refID int64, refType tasks.ReferenceType) ([]*tasks.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE reference_id = ? AND reference_type = ? ORDER BY id`,
		refID, string(refType))
}

// FindByAssigneeIn returns every task assigned to one of the ids.
func (s *SQLite) FindByAssigneeIn(ctx context.Context, assigneeIDs []int64) ([]*tasks.Task, error) {
	if len(assigneeIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(assigneeIDs)), ",")
	args := make([]any, len(assigneeIDs))
	for i, id := range assigneeIDs {
		args[i] = id
	}
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE assignee_id IN (`+placeholders+`) ORDER BY id`,
		args...)
}

// FindByPriority returns every task with the given priority.
func (s *SQLite) FindByPriority(ctx context.Context, p tasks.Priority) ([]*tasks.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE priority = ? ORDER BY id`,
		string(p))
}

// Save inserts or updates a task.
func (s *SQLite) Save(ctx context.Context, t *tasks.Task) (*tasks.Task, error) {
	if t == nil {
		return nil, fmt.Errorf("save: nil task")
	}
	stored := t.Clone()
	now := s.now()
	stored.UpdatedAt = now

	if stored.ID == 0 {
		stored.CreatedAt = now
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO tasks (reference_id, reference_type, task_type, assignee_id, priority,
				status, deadline, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.ReferenceID, string(stored.ReferenceType), string(stored.Type), stored.AssigneeID,
			string(stored.Priority), string(stored.Status), stored.Deadline, stored.Description,
			stored.CreatedAt, stored.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert task id: %w", err)
		}
		stored.ID = id
		return stored, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET reference_id = ?, reference_type = ?, task_type = ?, assignee_id = ?,
			priority = ?, status = ?, deadline = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		stored.ReferenceID, string(stored.ReferenceType), string(stored.Type), stored.AssigneeID,
		string(stored.Priority), string(stored.Status), stored.Deadline, stored.Description,
		stored.UpdatedAt, stored.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", stored.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("save task %d: %w", stored.ID, ErrNotFound)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT created_at FROM tasks WHERE id = ?`, stored.ID).Scan(&stored.CreatedAt); err != nil {
		return nil, fmt.Errorf("read task %d: %w", stored.ID, err)
	}
	return stored, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*tasks.Task, error) {
	t := &tasks.Task{}
	var refType, taskType, priority, status string
	err := row.Scan(
		&t.ID, &t.ReferenceID, &refType, &taskType, &t.AssigneeID, &priority,
		&status, &t.Deadline, &t.Description, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ReferenceType = tasks.ReferenceType(refType)
	t.Type = tasks.TaskType(taskType)
	t.Priority = tasks.Priority(priority)
	t.Status = tasks.TaskStatus(status)
	return t, nil
}

// queryTasks runs a query that returns a list of tasks.
func (s *SQLite) queryTasks(ctx context.Context, query string, args ...any) ([]*tasks.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
