package store

import "database/sql"

// migrations is applied in order, tracked in schema_migrations by index so
// a fresh process skips work it has already done. This generalizes the
// teacher's migration-list pattern to remem's schema (sdk_sessions,
// observations, session_summaries, pending_observations with lease columns,
// summarize_cooldown, plus the FTS5 index and its sync triggers).
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sdk_sessions (
		id INTEGER PRIMARY KEY,
		content_session_id TEXT UNIQUE NOT NULL,
		memory_session_id TEXT NOT NULL,
		project TEXT,
		user_prompt TEXT,
		started_at_epoch INTEGER,
		status TEXT DEFAULT 'active',
		prompt_counter INTEGER DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY,
		memory_session_id TEXT NOT NULL,
		project TEXT,
		kind TEXT NOT NULL,
		title TEXT,
		subtitle TEXT,
		narrative TEXT,
		facts TEXT,
		concepts TEXT,
		files_read TEXT,
		files_modified TEXT,
		discovery_tokens INTEGER DEFAULT 0,
		status TEXT DEFAULT 'active',
		created_at_epoch INTEGER NOT NULL,
		last_accessed_epoch INTEGER
	)`,

	`CREATE INDEX IF NOT EXISTS idx_observations_project_status
		ON observations(project, status, created_at_epoch DESC)`,

	`CREATE TABLE IF NOT EXISTS session_summaries (
		id INTEGER PRIMARY KEY,
		memory_session_id TEXT NOT NULL,
		project TEXT,
		request TEXT,
		completed TEXT,
		decisions TEXT,
		learned TEXT,
		next_steps TEXT,
		preferences TEXT,
		notes TEXT,
		discovery_tokens INTEGER DEFAULT 0,
		created_at_epoch INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS pending_observations (
		id INTEGER PRIMARY KEY,
		session_id TEXT NOT NULL,
		project TEXT NOT NULL,
		tool_name TEXT NOT NULL,
		tool_input TEXT,
		tool_response TEXT,
		cwd TEXT,
		created_at_epoch INTEGER NOT NULL,
		lease_owner TEXT,
		lease_expires_epoch INTEGER
	)`,

	`CREATE INDEX IF NOT EXISTS idx_pending_session ON pending_observations(session_id, id)`,

	`CREATE TABLE IF NOT EXISTS summarize_cooldown (
		project TEXT PRIMARY KEY,
		last_summarize_epoch INTEGER NOT NULL,
		last_message_hash TEXT
	)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
		title, subtitle, narrative, facts, concepts,
		content='observations',
		content_rowid='id'
	)`,

	`CREATE TRIGGER IF NOT EXISTS observations_ai AFTER INSERT ON observations BEGIN
		INSERT INTO observations_fts(rowid, title, subtitle, narrative, facts, concepts)
		VALUES (new.id, new.title, new.subtitle, new.narrative, new.facts, new.concepts);
	END`,

	`CREATE TRIGGER IF NOT EXISTS observations_ad AFTER DELETE ON observations BEGIN
		INSERT INTO observations_fts(observations_fts, rowid, title, subtitle, narrative, facts, concepts)
		VALUES ('delete', old.id, old.title, old.subtitle, old.narrative, old.facts, old.concepts);
	END`,

	`CREATE TRIGGER IF NOT EXISTS observations_au AFTER UPDATE ON observations BEGIN
		INSERT INTO observations_fts(observations_fts, rowid, title, subtitle, narrative, facts, concepts)
		VALUES ('delete', old.id, old.title, old.subtitle, old.narrative, old.facts, old.concepts);
		INSERT INTO observations_fts(rowid, title, subtitle, narrative, facts, concepts)
		VALUES (new.id, new.title, new.subtitle, new.narrative, new.facts, new.concepts);
	END`,
}

func applyMigrations(conn *sql.DB) error {
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}

	for i, stmt := range migrations {
		version := i + 1
		var count int
		if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if _, err := conn.Exec(stmt); err != nil {
			return err
		}
		if _, err := conn.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return err
		}
	}
	return nil
}
