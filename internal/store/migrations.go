// internal/store/migrations.go
package store

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		company_name TEXT NOT NULL,
		industry TEXT NOT NULL,
		team_size INTEGER NOT NULL,
		email TEXT NOT NULL,
		tech_stack TEXT[] NOT NULL DEFAULT '{}',
		challenges TEXT[] NOT NULL DEFAULT '{}',
		budget TEXT NOT NULL,
		timeline TEXT NOT NULL,
		score INTEGER NOT NULL,
		level TEXT NOT NULL,
		color TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS email_queue_items (
		id TEXT PRIMARY KEY,
		user_email TEXT NOT NULL,
		operator_email TEXT NOT NULL,
		subject TEXT NOT NULL,
		html_body TEXT NOT NULL,
		company_name TEXT NOT NULL,
		industry TEXT NOT NULL DEFAULT '',
		team_size INTEGER NOT NULL DEFAULT 0,
		budget TEXT NOT NULL DEFAULT '',
		timeline TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		sent_at TIMESTAMPTZ,
		failed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_items_pending
		ON email_queue_items (created_at) WHERE status = 'pending'`,
}

// Migrate applies the schema. Statements are idempotent so the call is safe
// on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
