package postgres

import (
	"database/sql"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
)

// migrationTable is kept apart from any migration table of the booking service,
// which owns rental_lines and booking_recipients.
const migrationTable = "reminder_schema_migrations"

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_create_reminder_logs",
			Up: []string{`
CREATE TABLE IF NOT EXISTS reminder_logs (
	id BIGSERIAL PRIMARY KEY,
	booking_id INTEGER NOT NULL,
	recipient_email TEXT NOT NULL,
	reminder_date DATE NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('due_day', 'overdue')),
	status TEXT NOT NULL CHECK (status IN ('claimed', 'sent', 'failed')),
	attempt INTEGER NOT NULL DEFAULT 1,
	claimed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	sent_at TIMESTAMPTZ,
	error TEXT,
	CONSTRAINT reminder_logs_natural_key UNIQUE (booking_id, recipient_email, reminder_date, type)
)`,
				`CREATE INDEX IF NOT EXISTS idx_reminder_logs_date_status ON reminder_logs (reminder_date, status)`,
			},
			Down: []string{`DROP TABLE IF EXISTS reminder_logs`},
		},
	},
}

func migrationSet() *migrate.MigrationSet {
	return &migrate.MigrationSet{TableName: migrationTable}
}

// Migrate applies pending reminder_logs migrations and returns how many ran.
func Migrate(db *sql.DB) (int, error) {
	n, err := migrationSet().Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("failed to apply reminder schema: %w", err)
	}
	return n, nil
}

// Rollback reverts the last max applied migrations; max 0 reverts all of them.
func Rollback(db *sql.DB, max int) (int, error) {
	n, err := migrationSet().ExecMax(db, "postgres", migrations, migrate.Down, max)
	if err != nil {
		return n, fmt.Errorf("failed to roll back reminder schema: %w", err)
	}
	return n, nil
}
