package migrations

// match_events has no foreign keys: the audit trail outlives deleted matches.
var matchEventsUp = []string{
	`CREATE TABLE match_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id INTEGER NOT NULL,
		transaction_id INTEGER NOT NULL,
		receipt_id INTEGER NOT NULL,
		action TEXT NOT NULL,
		source TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX idx_match_events_match ON match_events(match_id)`,
}

var matchEventsDown = []string{
	`DROP TABLE IF EXISTS match_events`,
}
