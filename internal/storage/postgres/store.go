// Package postgres opens the ledger on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"budgetbot/internal/storage"
	"budgetbot/internal/storage/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dialect is the PostgreSQL statement set.
var Dialect = sqlstore.Dialect{
	Name:                 "postgres",
	EnsureChat:           `INSERT INTO state (chat_id, food_cents) VALUES ($1, $2) ON CONFLICT (chat_id) DO NOTHING`,
	GetState:             `SELECT total_cents, food_cents, balance_message_id FROM state WHERE chat_id = $1`,
	UpsertTotal:          `INSERT INTO state (chat_id, food_cents, total_cents) VALUES ($1, $2, $3) ON CONFLICT (chat_id) DO UPDATE SET total_cents = EXCLUDED.total_cents`,
	UpsertFood:           `INSERT INTO state (chat_id, food_cents) VALUES ($1, $2) ON CONFLICT (chat_id) DO UPDATE SET food_cents = EXCLUDED.food_cents`,
	UpsertBalanceMessage: `INSERT INTO state (chat_id, food_cents, balance_message_id) VALUES ($1, $2, $3) ON CONFLICT (chat_id) DO UPDATE SET balance_message_id = EXCLUDED.balance_message_id`,
	UpdateTotal:          `UPDATE state SET total_cents = $1 WHERE chat_id = $2`,
	UpdateFood:           `UPDATE state SET food_cents = $1 WHERE chat_id = $2`,
	InsertEntry: `INSERT INTO entries (chat_id, thread_id, category, amount_cents, direction, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
	ListEntries: `SELECT id, chat_id, thread_id, category, amount_cents, direction, note, created_at
FROM entries WHERE chat_id = $1 ORDER BY id`,
}

// NewPostgresLedgerStore connects to dsn, applies migrations and returns the
// ledger store.
func NewPostgresLedgerStore(ctx context.Context, dsn string, opts storage.Options) (*sqlstore.Store, error) {
	if dsn == "" {
		return nil, errors.New("open postgres: empty dsn")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "PostgreSQL ledger opened")
	return sqlstore.New(db, Dialect, opts), nil
}

func runMigrations(dsn string) error {
	// The migrator pins a connection until closed, so it gets its own pool.
	migrateDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := migratepg.WithInstance(migrateDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
