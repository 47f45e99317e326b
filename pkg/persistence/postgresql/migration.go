package postgresql

// migrations returns the schema migrations keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS providers (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				name TEXT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				priority INTEGER NOT NULL DEFAULT 0,
				credentials JSONB,
				webhook_secret TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				disabled_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_providers_company
				ON providers (company_id);

			CREATE TABLE IF NOT EXISTS flows (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				name TEXT NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				nodes JSONB NOT NULL,
				edges JSONB NOT NULL,
				entry_node_id TEXT NOT NULL,
				trigger_keyword TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_flows_company
				ON flows (company_id);

			CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				flow_id TEXT NOT NULL,
				flow_version INTEGER NOT NULL DEFAULT 1,
				ticket_id TEXT NOT NULL,
				contact_id TEXT,
				company_id TEXT NOT NULL,
				status TEXT NOT NULL,
				current_node_id TEXT,
				variables JSONB,
				history JSONB,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE,
				error TEXT
			);

			CREATE INDEX IF NOT EXISTS idx_executions_ticket_active
				ON executions (ticket_id)
				WHERE status IN ('running', 'paused');

			CREATE INDEX IF NOT EXISTS idx_executions_company
				ON executions (company_id);
		`,
		2: `
			ALTER TABLE executions
				ADD COLUMN IF NOT EXISTS paused_until TIMESTAMP WITH TIME ZONE;
		`,
	}
}
