package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// NewTestDB creates an in-memory SQLite database with the rule engine schema
func NewTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	// In-memory databases vanish when their last connection closes, so keep
	// exactly one.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS security_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		severity TEXT NOT NULL,
		pattern TEXT NOT NULL,
		remediation TEXT NOT NULL,
		origin TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		checksum TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rule_versions (
		rule_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		change_reason TEXT NOT NULL DEFAULT '',
		snapshot TEXT NOT NULL,
		PRIMARY KEY (rule_id, version),
		FOREIGN KEY (rule_id) REFERENCES security_rules(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS rule_metrics (
		rule_id TEXT PRIMARY KEY,
		times_triggered INTEGER NOT NULL DEFAULT 0,
		true_positives INTEGER NOT NULL DEFAULT 0,
		false_positives INTEGER NOT NULL DEFAULT 0,
		last_triggered TEXT,
		effectiveness_score REAL NOT NULL DEFAULT 0,
		FOREIGN KEY (rule_id) REFERENCES security_rules(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS rule_conflicts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_id TEXT NOT NULL,
		conflicting_rule_id TEXT NOT NULL,
		conflict_type TEXT NOT NULL,
		description TEXT NOT NULL,
		severity TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (rule_id, conflicting_rule_id, conflict_type),
		FOREIGN KEY (rule_id) REFERENCES security_rules(id) ON DELETE CASCADE,
		FOREIGN KEY (conflicting_rule_id) REFERENCES security_rules(id) ON DELETE CASCADE
	);
	`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return db
}

// CleanupDB closes the test database
func CleanupDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}
