package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/marcus/dispatch/internal/logging"
)

// Migration represents a single schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: tasks, task_comments, task_activities",
		SQL:         migration001SQL,
	},
	{
		Version:     2,
		Description: "index tasks by assignee and priority",
		SQL:         migration002SQL,
	},
}

const migration001SQL = `
CREATE TABLE tasks (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    reference_id    INTEGER NOT NULL,
    reference_type  TEXT NOT NULL,
    task_type       TEXT NOT NULL,
    assignee_id     INTEGER NOT NULL DEFAULT 0,
    priority        TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    deadline        INTEGER NOT NULL DEFAULT 0,
    description     TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);

CREATE TABLE task_comments (
    id          TEXT PRIMARY KEY,
    task_id     INTEGER NOT NULL REFERENCES tasks(id),
    body        TEXT NOT NULL,
    author      TEXT NOT NULL,
    timestamp   INTEGER NOT NULL
);

CREATE TABLE task_activities (
    id          TEXT PRIMARY KEY,
    task_id     INTEGER NOT NULL REFERENCES tasks(id),
    description TEXT NOT NULL,
    timestamp   INTEGER NOT NULL
);

CREATE INDEX idx_tasks_reference ON tasks(reference_type, reference_id, id);
CREATE INDEX idx_task_comments_task ON task_comments(task_id, timestamp);
CREATE INDEX idx_task_activities_task ON task_activities(task_id, timestamp);
`

const migration002SQL = `
CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id, id);
CREATE INDEX IF NOT EXISTS idx_tasks_priority ON tasks(priority, id);
`

// Migrate runs all pending migrations inside transactions.
func Migrate(db *sql.DB) error {
	if db == nil {
		return errors.New("db is nil")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at DATETIME)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return err
	}

	log := logging.Component("db")
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, migration.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", migration.Version, err)
		}

		log.Debugf("applied migration %d: %s", migration.Version, migration.Description)
		currentVersion = migration.Version
	}

	return nil
}

// CurrentVersion returns the current schema version (0 if no migrations applied).
func CurrentVersion(db *sql.DB) (int, error) {
	if db == nil {
		return 0, errors.New("db is nil")
	}

	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema_version: %w", err)
	}
	return version, nil
}
