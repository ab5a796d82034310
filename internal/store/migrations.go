package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one forward-only schema change
type migration struct {
	version int
	name    string
	queries []string
}

var sqliteMigrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		queries: []string{
			`CREATE TABLE IF NOT EXISTS transactions (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT UNIQUE NOT NULL,
				date TEXT NOT NULL,
				name TEXT NOT NULL,
				car TEXT NOT NULL DEFAULT '',
				depositor TEXT NOT NULL DEFAULT '',
				value TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending-ledger',
				source TEXT NOT NULL DEFAULT '',
				payment_method TEXT NOT NULL DEFAULT '',
				confidence INTEGER,
				matched_transaction_id TEXT NOT NULL DEFAULT '',
				sheet_order INTEGER,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status)`,
		},
	},
	{
		version: 2,
		name:    "add_trash",
		queries: []string{
			`ALTER TABLE transactions ADD COLUMN deleted_at TEXT`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_deleted_at ON transactions(deleted_at)`,
		},
	},
}

// runMigrations executes all pending migrations
func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range sqliteMigrations {
		if applied[m.version] {
			continue
		}

		s.logger.WithField("version", m.version).WithField("name", m.name).Info("Running migration")

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		for _, query := range m.queries {
			if _, err := tx.ExecContext(ctx, query); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

func (s *SQLiteStore) appliedMigrations(ctx context.Context) (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// schemaVersion returns the highest applied migration
func (s *SQLiteStore) schemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}
