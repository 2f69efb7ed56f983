package migrations

// Amounts are stored as integer cents, dates as YYYY-MM-DD text.
var coreSchemaUp = []string{
	`CREATE TABLE transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_date TEXT NOT NULL,
		description TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		card_last_four TEXT NOT NULL DEFAULT '',
		issuer_transaction_id TEXT,
		external_transaction_id TEXT,
		sales_tax_cents INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (transaction_date, description, amount_cents)
	)`,

	`CREATE UNIQUE INDEX idx_transactions_issuer_id
	 ON transactions(issuer_transaction_id)
	 WHERE issuer_transaction_id IS NOT NULL`,

	`CREATE INDEX idx_transactions_date ON transactions(transaction_date)`,

	`CREATE TABLE receipts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_ref TEXT NOT NULL,
		original_filename TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		content_type TEXT NOT NULL DEFAULT '',
		upload_date TIMESTAMP NOT NULL,
		ocr_text TEXT NOT NULL DEFAULT '',
		extracted_amount_cents INTEGER,
		extracted_date TEXT,
		extracted_merchant TEXT NOT NULL DEFAULT '',
		processing_status TEXT NOT NULL DEFAULT 'pending'
			CHECK (processing_status IN ('pending', 'processing', 'completed', 'failed')),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX idx_receipts_status ON receipts(processing_status)`,

	`CREATE TABLE matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
		receipt_id INTEGER NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
		match_confidence REAL NOT NULL CHECK (match_confidence BETWEEN 0 AND 100),
		match_status TEXT NOT NULL DEFAULT 'pending'
			CHECK (match_status IN ('pending', 'confirmed', 'rejected')),
		user_confirmed BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (transaction_id, receipt_id)
	)`,

	`CREATE INDEX idx_matches_receipt ON matches(receipt_id)`,
	`CREATE INDEX idx_matches_status ON matches(match_status)`,
}

var coreSchemaDown = []string{
	`DROP TABLE IF EXISTS matches`,
	`DROP TABLE IF EXISTS receipts`,
	`DROP TABLE IF EXISTS transactions`,
}
