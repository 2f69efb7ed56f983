package migrations

var importRunsUp = []string{
	`CREATE TABLE import_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		total_rows INTEGER NOT NULL DEFAULT 0,
		imported INTEGER NOT NULL DEFAULT 0,
		duplicates INTEGER NOT NULL DEFAULT 0,
		malformed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running',
		error_message TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX idx_import_runs_started ON import_runs(started_at)`,
}

var importRunsDown = []string{
	`DROP TABLE IF EXISTS import_runs`,
}
