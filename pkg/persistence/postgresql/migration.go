package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				scope_id VARCHAR(255) NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL DEFAULT '',
				trigger_type VARCHAR(50) NOT NULL,
				trigger_config JSONB,
				actions JSONB NOT NULL,
				conditions JSONB,
				fail_fast BOOLEAN NOT NULL DEFAULT false,
				ai_model VARCHAR(255) NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT true,
				max_concurrent_runs INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_scope_id ON workflows(scope_id);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				trigger_data JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'succeeded', 'failed')),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				execution_time_ms BIGINT,
				error_message TEXT
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id, started_at DESC);
			CREATE INDEX idx_executions_status ON executions(status);

			CREATE TABLE execution_outcomes (
				execution_id VARCHAR(255) NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
				action_index INTEGER NOT NULL,
				action_type VARCHAR(255) NOT NULL,
				success BOOLEAN NOT NULL,
				result JSONB,
				error_message TEXT NOT NULL DEFAULT '',
				duration_ms BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (execution_id, action_index)
			);
		`,
	}
}
