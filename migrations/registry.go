package migrations

// All returns the full ordered migration set for the service. New schema
// changes append a new entry; existing entries never change once shipped.
func All() []Migration {
	return []Migration{
		{
			ID:   "0001",
			Name: "core_schema",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS profiles (
					id TEXT PRIMARY KEY,
					email TEXT NOT NULL UNIQUE,
					full_name TEXT NOT NULL DEFAULT '',
					password_hash TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS projects (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
					title TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					type TEXT NOT NULL DEFAULT 'systematic_review',
					status TEXT NOT NULL DEFAULT 'draft',
					progress INT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS conversations (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					owner_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
					title TEXT NOT NULL DEFAULT 'New Conversation',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS messages (
					id TEXT PRIMARY KEY,
					conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
					role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
					content TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'complete',
					metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_conversations_project ON conversations (project_id, created_at DESC)`,
			},
		},
		{
			ID:   "0002",
			Name: "review_tables",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS protocols (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL UNIQUE REFERENCES projects(id) ON DELETE CASCADE,
					owner_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
					title TEXT NOT NULL DEFAULT '',
					population TEXT NOT NULL DEFAULT '',
					intervention TEXT NOT NULL DEFAULT '',
					comparison TEXT NOT NULL DEFAULT '',
					outcome TEXT NOT NULL DEFAULT '',
					inclusion_criteria TEXT[] NOT NULL DEFAULT '{}',
					exclusion_criteria TEXT[] NOT NULL DEFAULT '{}',
					status TEXT NOT NULL DEFAULT 'draft',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE TABLE IF NOT EXISTS studies (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					owner_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
					title TEXT NOT NULL,
					authors TEXT NOT NULL DEFAULT '',
					journal TEXT NOT NULL DEFAULT '',
					year INT NOT NULL DEFAULT 0,
					abstract TEXT NOT NULL DEFAULT '',
					doi TEXT NOT NULL DEFAULT '',
					screening_status TEXT NOT NULL DEFAULT 'pending',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
				`CREATE INDEX IF NOT EXISTS idx_studies_project ON studies (project_id, created_at DESC)`,
			},
		},
		{
			ID:   "0003",
			Name: "export_logs",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS export_logs (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					owner_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
					kind TEXT NOT NULL,
					format TEXT NOT NULL,
					row_count INT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
			},
		},
	}
}
