// Package database provides the SQLite persistence layer: the connection
// wrapper, schema migrations, and the DAOs backing the guardrail engine's
// store interfaces and the redaction review queue.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loreguard-ai/loreguard/internal/types"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// Config holds connection options.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// DefaultConfig returns sensible defaults for the given database path.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		BusyTimeout:     5 * time.Second,
	}
}

// Open opens the database with default configuration. Use ":memory:" for an
// in-memory database in tests.
func Open(path string) (*DB, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig opens the database with WAL mode, foreign keys, and a busy
// timeout for concurrent readers.
func OpenWithConfig(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d",
		cfg.Path,
		int(cfg.BusyTimeout.Milliseconds()),
	)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, types.WrapError(types.DB_OPEN_FAILED, "open database", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, types.WrapError(types.DB_OPEN_FAILED, "ping database", err)
	}

	return &DB{conn: conn, path: cfg.Path}, nil
}

// Close closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn returns the underlying sql.DB. Prefer the DAO methods.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Health verifies the connection is alive and queryable.
func (db *DB) Health(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "ping failed", err)
	}
	var result int
	if err := db.conn.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "health query failed", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "commit transaction", err)
	}
	return nil
}

// InitSchema applies all pending migrations.
func (db *DB) InitSchema() error {
	return NewMigrator(db).Migrate(context.Background())
}

// Checkpoint moves WAL data into the main database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "checkpoint failed", err)
	}
	return nil
}
