package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marcus/dispatch/internal/tasks"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS task_comments (
    seq         BIGSERIAL PRIMARY KEY,
    id          TEXT NOT NULL UNIQUE,
    task_id     BIGINT NOT NULL,
    body        TEXT NOT NULL,
    author      TEXT NOT NULL,
    timestamp   BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS task_activities (
    seq         BIGSERIAL PRIMARY KEY,
    id          TEXT NOT NULL UNIQUE,
    task_id     BIGINT NOT NULL,
    description TEXT NOT NULL,
    timestamp   BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_comments_task ON task_comments(task_id, seq);
CREATE INDEX IF NOT EXISTS idx_task_activities_task ON task_activities(task_id, seq);
`

// Postgres stores the log next to the tasks table in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
	now  Clock
}

// NewPostgres creates the log tables if needed. A nil clock reads the wall
// clock.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, now Clock) (*Postgres, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create activity schema: %w", err)
	}
	if now == nil {
		now = systemClock
	}
	return &Postgres{pool: pool, now: now}, nil
}

func (p *Postgres) AddComment(ctx context.Context, taskID int64, text, author string) (tasks.Comment, error) {
	c := tasks.Comment{
		ID:        newID(),
		TaskID:    taskID,
		Text:      text,
		Author:    author,
		Timestamp: p.now(),
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO task_comments (id, task_id, body, author, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.TaskID, c.Text, c.Author, c.Timestamp,
	)
	if err != nil {
		return tasks.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

func (p *Postgres) AddActivity(ctx context.Context, taskID int64, description string) (tasks.Activity, error) {
	a := tasks.Activity{
		ID:          newID(),
		TaskID:      taskID,
		Description: description,
		Timestamp:   p.now(),
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO task_activities (id, task_id, description, timestamp) VALUES ($1, $2, $3, $4)`,
		a.ID, a.TaskID, a.Description, a.Timestamp,
	)
	if err != nil {
		return tasks.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	return a, nil
}

func (p *Postgres) Comments(ctx context.Context, taskID int64) ([]tasks.Comment, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, task_id, body, author, timestamp FROM task_comments WHERE task_id = $1 ORDER BY seq`,
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

func (p *Postgres) Activities(ctx context.Context, taskID int64) ([]tasks.Activity, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, task_id, description, timestamp FROM task_activities WHERE task_id = $1 ORDER BY seq`,
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
