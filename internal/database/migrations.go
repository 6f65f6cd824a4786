package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/loreguard-ai/loreguard/internal/types"
)

//go:embed schema.sql
var initialSchema string

// migration is a single versioned schema change.
type migration struct {
	version int
	name    string
	up      string
}

// getMigrations returns all migrations in order.
func getMigrations() []migration {
	return []migration{
		{
			version: 1,
			name:    "initial_schema",
			up:      initialSchema,
		},
		{
			version: 2,
			name:    "review_expiry_index",
			up:      `CREATE INDEX IF NOT EXISTS idx_review_status_expiry ON review_queue(status, expires_at);`,
		},
	}
}

// Migrator applies pending schema migrations.
type Migrator struct {
	db         *DB
	migrations []migration
}

// NewMigrator creates a migrator over the database.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db, migrations: getMigrations()}
}

// CurrentVersion returns the highest applied migration version, zero on a
// fresh database.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return 0, err
	}
	var version int
	err := m.db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, types.WrapError(types.DB_MIGRATION_FAILED, "read schema version", err)
	}
	return version, nil
}

// Migrate applies all migrations above the current version, each in its own
// transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if mig.version <= current {
			continue
		}
		err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
				mig.version, mig.name)
			return err
		})
		if err != nil {
			return types.WrapError(types.DB_MIGRATION_FAILED,
				fmt.Sprintf("apply migration %d (%s)", mig.version, mig.name), err)
		}
	}
	return nil
}

// ensureVersionTable creates the migration bookkeeping table.
func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return types.WrapError(types.DB_MIGRATION_FAILED, "create schema_migrations", err)
	}
	return nil
}
