// Package storage owns the durable SQLite schema shared by the Goal Store,
// the Audit Ledger, and the Budget Manager. It exposes nothing but a
// connection and a migration step; each owning component (internal/
// goalstore, internal/audit, internal/budget) reads and writes its own
// tables directly, keeping the ownership boundary from spec.md §3 explicit
// in code rather than hidden behind a shared repository type.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("storage")

// Open opens (creating if necessary) the SQLite database at path and applies
// the schema. An empty path opens an in-memory database, useful for tests.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}
	// The core is a single-writer process; one connection avoids SQLite's
	// "database is locked" errors under concurrent writers without needing
	// a connection pool we'd just have to serialize again ourselves.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate %q: %w", path, err)
	}
	log.Info().Str("path", path).Msg("opened durable store")
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS goals (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	priority INTEGER NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	metadata BLOB
);
CREATE INDEX IF NOT EXISTS idx_goals_status ON goals(status);
CREATE INDEX IF NOT EXISTS idx_goals_priority ON goals(priority, created_at);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	goal_id TEXT NOT NULL,
	description TEXT NOT NULL,
	intelligence_level TEXT NOT NULL,
	required_tools TEXT NOT NULL,
	depends_on TEXT NOT NULL,
	status TEXT NOT NULL,
	input_json BLOB,
	output_json BLOB,
	assigned_agent TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	started_at INTEGER NOT NULL DEFAULT 0,
	completed_at INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	seq INTEGER
);
CREATE INDEX IF NOT EXISTS idx_tasks_goal ON tasks(goal_id, seq);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS goal_messages (
	id TEXT PRIMARY KEY,
	goal_id TEXT NOT NULL,
	sender TEXT NOT NULL,
	content TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	seq INTEGER
);
CREATE INDEX IF NOT EXISTS idx_messages_goal ON goal_messages(goal_id, seq);

CREATE TABLE IF NOT EXISTS audit_log (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	reason TEXT NOT NULL,
	success INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	prev_hash TEXT NOT NULL,
	hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_tool ON audit_log(tool_name);
CREATE INDEX IF NOT EXISTS idx_audit_agent ON audit_log(agent_id);
CREATE INDEX IF NOT EXISTS idx_audit_time ON audit_log(timestamp);

CREATE TABLE IF NOT EXISTS provider_budgets (
	provider TEXT PRIMARY KEY,
	monthly_budget_usd REAL NOT NULL,
	used_usd REAL NOT NULL,
	month_start INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd REAL NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_provider ON usage_records(provider, timestamp);
`

func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
