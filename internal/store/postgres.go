package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marcus/dispatch/internal/tasks"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tasks (
    id              BIGSERIAL PRIMARY KEY,
    reference_id    BIGINT NOT NULL,
    reference_type  TEXT NOT NULL,
    task_type       TEXT NOT NULL,
    assignee_id     BIGINT NOT NULL DEFAULT 0,
    priority        TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    deadline        BIGINT NOT NULL DEFAULT 0,
    description     TEXT NOT NULL DEFAULT '',
    created_at      BIGINT NOT NULL,
    updated_at      BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_reference ON tasks(reference_type, reference_id, id);
CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id, id);
CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority, id);
`

// Postgres stores tasks in a PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
	now  Clock
}

// OpenPostgres connects to dsn and creates the tasks table if needed.
func OpenPostgres(ctx context.Context, dsn string, now Clock) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return NewPostgres(pool, now), nil
}

// NewPostgres wraps an existing pool. The schema must already exist.
func NewPostgres(pool *pgxpool.Pool, now Clock) *Postgres {
	if now == nil {
		now = SystemClock
	}
	return &Postgres{pool: pool, now: now}
}

// Pool returns the underlying connection pool.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Get returns the task with the given id.
func (p *Postgres) Get(ctx context.Context, id int64) (*tasks.Task, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// FindByReference returns every task attached to a reference.
func (p *Postgres) FindByReference(ctx context.Context, refID int64, refType tasks.ReferenceType) ([]*tasks.Task, error) {
	return p.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE reference_id = $1 AND reference_type = $2 ORDER BY id`,
		refID, string(refType))
}

// FindByAssigneeIn returns every task assigned to one of the ids.
func (p *Postgres) FindByAssigneeIn(ctx context.Context, assigneeIDs []int64) ([]*tasks.Task, error) {
	if len(assigneeIDs) == 0 {
		return nil, nil
	}
	return p.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE assignee_id = ANY($1) ORDER BY id`,
		assigneeIDs)
}

// FindByPriority returns every task with the given priority.
func (p *Postgres) FindByPriority(ctx context.Context, pr tasks.Priority) ([]*tasks.Task, error) {
	return p.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE priority = $1 ORDER BY id`,
		string(pr))
}

// Save inserts or updates a task.
func (p *Postgres) Save(ctx context.Context, t *tasks.Task) (*tasks.Task, error) {
	if t == nil {
		return nil, fmt.Errorf("save: nil task")
	}
	stored := t.Clone()
	now := p.now()
	stored.UpdatedAt = now

	if stored.ID == 0 {
		stored.CreatedAt = now
		err := p.pool.QueryRow(ctx, `
			INSERT INTO tasks (reference_id, reference_type, task_type, assignee_id, priority,
				status, deadline, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			stored.ReferenceID, string(stored.ReferenceType), string(stored.Type), stored.AssigneeID,
			string(stored.Priority), string(stored.Status), stored.Deadline, stored.Description,
			stored.CreatedAt, stored.UpdatedAt,
		).Scan(&stored.ID)
		if err != nil {
			return nil, fmt.Errorf("insert task: %w", err)
		}
		return stored, nil
	}

	err := p.pool.QueryRow(ctx, `
		UPDATE tasks SET reference_id = $1, reference_type = $2, task_type = $3, assignee_id = $4,
			priority = $5, status = $6, deadline = $7, description = $8, updated_at = $9
		WHERE id = $10
		RETURNING created_at`,
		stored.ReferenceID, string(stored.ReferenceType), string(stored.Type), stored.AssigneeID,
		string(stored.Priority), string(stored.Status), stored.Deadline, stored.Description,
		stored.UpdatedAt, stored.ID,
	).Scan(&stored.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("save task %d: %w", stored.ID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", stored.ID, err)
	}
	return stored, nil
}

func (p *Postgres) queryTasks(ctx context.Context, query string, args ...any) ([]*tasks.Task, error) {
	rows, err := p.pool.Query(ctx, query, args...)
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
