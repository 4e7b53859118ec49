package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Tenants, accounts, categories and transactions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS tenants (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL UNIQUE,
					base_currency TEXT,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (tenant_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (tenant_id, name)
				)`,
				// date is TEXT (YYYY-MM-DD) and amount is canonical decimal TEXT.
				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					account_id INTEGER NOT NULL REFERENCES accounts(id),
					category_id INTEGER REFERENCES categories(id),
					date TEXT NOT NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL,
					currency TEXT NOT NULL,
					note TEXT,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_identity
					ON transactions(tenant_id, account_id, date, amount, description, currency)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Import history",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS import_runs (
					id TEXT PRIMARY KEY,
					tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					file_name TEXT NOT NULL DEFAULT '',
					content_type TEXT NOT NULL,
					imported INTEGER NOT NULL,
					failed INTEGER NOT NULL,
					duplicates INTEGER NOT NULL,
					dry_run BOOLEAN NOT NULL DEFAULT 0,
					ip_address TEXT,
					user_agent TEXT,
					started_at TIMESTAMP NOT NULL,
					duration_ns INTEGER NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_import_runs_tenant_started
					ON import_runs(tenant_id, started_at DESC)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies every pending migration.
func (s *Store) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}
	return nil
}
