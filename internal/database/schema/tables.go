// Package schema holds the table definitions created at startup.
package schema

// TableDefinitions contains all the SQL statements to create the database tables
// Don't put REFERENCES and don't put CHECK constraints in the CREATE TABLE statements
var TableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS error_reports (
		id VARCHAR(64) PRIMARY KEY,
		code INTEGER NOT NULL,
		category VARCHAR(20) NOT NULL,
		severity VARCHAR(10) NOT NULL,
		message TEXT NOT NULL,
		source VARCHAR(255),
		correlation_id VARCHAR(128),
		user_id VARCHAR(128),
		retry_count INTEGER NOT NULL DEFAULT 0,
		fallback_tried BOOLEAN NOT NULL DEFAULT FALSE,
		occurred_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_error_reports_occurred_at ON error_reports (occurred_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_error_reports_category ON error_reports (category, occurred_at DESC)`,
}
