package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260301-000000",
		Description: "initial schema: screening jobs and page cache",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS jobs (
				id TEXT PRIMARY KEY,
				reference_id TEXT,
				status TEXT NOT NULL DEFAULT 'pending',
				input_json TEXT NOT NULL,
				result_json TEXT,
				error_message TEXT,
				webhook_url TEXT,
				webhook_headers_json TEXT,
				webhook_status TEXT,
				webhook_attempts INTEGER NOT NULL DEFAULT 0,
				started_at TEXT,
				completed_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at)`,
			`CREATE TABLE IF NOT EXISTS page_cache (
				url TEXT PRIMARY KEY,
				canonical_url TEXT,
				page_type TEXT NOT NULL,
				content_hash TEXT NOT NULL,
				html TEXT NOT NULL,
				status INTEGER NOT NULL,
				headers TEXT,
				expires_at TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at)`,
		},
	})
}
