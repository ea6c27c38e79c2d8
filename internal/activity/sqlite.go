package activity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marcus/dispatch/internal/db"
	"github.com/marcus/dispatch/internal/tasks"
)

// SQLite stores the log in the task_comments and task_activities tables.
// Tasks must exist in the same database.
type SQLite struct {
	db  *sql.DB
	now Clock
}

// NewSQLite wraps an open database. A nil clock reads the wall clock.
func NewSQLite(database *db.DB, now Clock) *SQLite {
	if now == nil {
		now = systemClock
	}
	return &SQLite{db: database.SQL(), now: now}
}

func (s *SQLite) AddComment(ctx context.Context, taskID int64, text, author string) (tasks.Comment, error) {
	c := tasks.Comment{
		ID:        newID(),
		TaskID:    taskID,
		Text:      text,
		Author:    author,
		Timestamp: s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_comments (id, task_id, body, author, timestamp) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.Text, c.Author, c.Timestamp,
	)
	if err != nil {
		return tasks.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

func (s *SQLite) AddActivity(ctx context.Context, taskID int64, description string) (tasks.Activity, error) {
	a := tasks.Activity{
		ID:          newID(),
		TaskID:      taskID,
		Description: description,
		Timestamp:   s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_activities (id, task_id, description, timestamp) VALUES (?, ?, ?, ?)`,
		a.ID, a.TaskID, a.Description, a.Timestamp,
	)
	if err != nil {
		return tasks.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	return a, nil
}

func (s *SQLite) Comments(ctx context.Context, taskID int64) ([]tasks.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, body, author, timestamp FROM task_comments WHERE task_id = ? ORDER BY rowid`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var out []tasks.Comment
	for rows.Next() {
		var c tasks.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Text, &c.Author, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) Activities(ctx context.Context, taskID int64) ([]tasks.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, description, timestamp FROM task_activities WHERE task_id = ? ORDER BY rowid`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var out []tasks.Activity
	for rows.Next() {
		var a tasks.Activity
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Description, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
