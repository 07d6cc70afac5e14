package sqlite

// Timestamp columns are declared TIMESTAMP so go-sqlite3 scans them back into time.Time.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				scope_id TEXT NOT NULL DEFAULT '',
				name TEXT NOT NULL DEFAULT '',
				trigger_type TEXT NOT NULL,
				trigger_config TEXT,
				actions TEXT NOT NULL,
				conditions TEXT,
				fail_fast BOOLEAN NOT NULL DEFAULT 0,
				ai_model TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT 1,
				max_concurrent_runs INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);

			CREATE INDEX idx_workflows_scope_id ON workflows(scope_id);

			CREATE TABLE executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				trigger_data TEXT NOT NULL DEFAULT '{}',
				status TEXT NOT NULL CHECK (status IN ('running', 'succeeded', 'failed')),
				started_at TIMESTAMP NOT NULL,
				completed_at TIMESTAMP,
				execution_time_ms INTEGER,
				error_message TEXT
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id, started_at);

			CREATE TABLE execution_outcomes (
				execution_id TEXT NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
				action_index INTEGER NOT NULL,
				action_type TEXT NOT NULL,
				success BOOLEAN NOT NULL,
				result TEXT,
				error_message TEXT NOT NULL DEFAULT '',
				duration_ms INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (execution_id, action_index)
			);
		`,
	}
}
