// Package sqlite opens the ledger on a local SQLite file using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budgetbot/internal/storage"
	"budgetbot/internal/storage/sqlstore"

	_ "modernc.org/sqlite"
)

// Dialect is the SQLite statement set.
var Dialect = sqlstore.Dialect{
	Name:                 "sqlite",
	EnsureChat:           `INSERT INTO state (chat_id, food_cents) VALUES (?, ?) ON CONFLICT (chat_id) DO NOTHING`,
	GetState:             `SELECT total_cents, food_cents, balance_message_id FROM state WHERE chat_id = ?`,
	UpsertTotal:          `INSERT INTO state (chat_id, food_cents, total_cents) VALUES (?, ?, ?) ON CONFLICT (chat_id) DO UPDATE SET total_cents = excluded.total_cents`,
	UpsertFood:           `INSERT INTO state (chat_id, food_cents) VALUES (?, ?) ON CONFLICT (chat_id) DO UPDATE SET food_cents = excluded.food_cents`,
	UpsertBalanceMessage: `INSERT INTO state (chat_id, food_cents, balance_message_id) VALUES (?, ?, ?) ON CONFLICT (chat_id) DO UPDATE SET balance_message_id = excluded.balance_message_id`,
	UpdateTotal:          `UPDATE state SET total_cents = ? WHERE chat_id = ?`,
	UpdateFood:           `UPDATE state SET food_cents = ? WHERE chat_id = ?`,
	InsertEntry: `INSERT INTO entries (chat_id, thread_id, category, amount_cents, direction, note, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
	ListEntries: `SELECT id, chat_id, thread_id, category, amount_cents, direction, note, created_at
FROM entries WHERE chat_id = ? ORDER BY id`,
}

// NewSQLiteRepository opens (or creates) the database file, applies
// migrations and returns the ledger store.
func NewSQLiteRepository(dbPath string, opts storage.Options) (*sqlstore.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("open sqlite: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite ledger opened", "db_path", dbPath)
	return sqlstore.New(db, Dialect, opts), nil
}

func dsn(dbPath string) string {
	return "file:" + dbPath + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
