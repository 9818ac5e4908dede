package sqlite

import "database/sql"

// EnsureSchema creates the reminder tables when they do not exist yet.
// RemindAt is stored as Unix seconds so range comparisons are numeric;
// the driver's textual time encoding is not safely comparable.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS Reminders (
			ReminderId   TEXT PRIMARY KEY,
			OwnerId      TEXT NOT NULL,
			Task         TEXT NOT NULL,
			RemindAt     INTEGER NOT NULL,
			Status       TEXT NOT NULL DEFAULT 'pending',
			CreationTime TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_owner_task
			ON Reminders (OwnerId, Status, Task, RemindAt)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_owner_time
			ON Reminders (OwnerId, Status, RemindAt)`,
		`CREATE TABLE IF NOT EXISTS Sessions (
			SessionId    TEXT PRIMARY KEY,
			OwnerId      TEXT NOT NULL,
			CreationTime TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
