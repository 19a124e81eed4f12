// Package sqlstore implements storage.LedgerStore on database/sql. The SQL
// text is supplied by a Dialect so sqlite and postgres share one code path.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budgetbot/internal/core"
	"budgetbot/internal/log"
	"budgetbot/internal/storage"
)

// Dialect holds the statements of one SQL engine. Statements take their
// arguments in the order documented on each field.
type Dialect struct {
	Name string

	// chat_id, food_cents
	EnsureChat string
	// chat_id
	GetState string
	// chat_id, food_cents(default), total_cents
	UpsertTotal string
	// chat_id, food_cents
	UpsertFood string
	// chat_id, food_cents(default), balance_message_id
	UpsertBalanceMessage string
	// total_cents, chat_id
	UpdateTotal string
	// food_cents, chat_id
	UpdateFood string
	// chat_id, thread_id, category, amount_cents, direction, note, created_at; returns id
	InsertEntry string
	// chat_id
	ListEntries string
}

// Store is a LedgerStore backed by a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	opts    storage.Options
}

var (
	_ storage.LedgerStore = (*Store)(nil)
	_ storage.Pinger      = (*Store)(nil)
)

// New wraps an open, migrated database.
func New(db *sql.DB, dialect Dialect, opts storage.Options) *Store {
	return &Store{db: db, dialect: dialect, opts: opts.WithDefaults()}
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) EnsureChat(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.EnsureChat, chatID, s.opts.DefaultFoodCents); err != nil {
		return fmt.Errorf("ensure chat %d: %w", chatID, err)
	}
	return nil
}

func (s *Store) GetState(ctx context.Context, chatID int64) (core.ChatState, error) {
	if err := s.EnsureChat(ctx, chatID); err != nil {
		return core.ChatState{}, err
	}
	return getState(ctx, s.db, s.dialect, chatID)
}

func (s *Store) SetTotal(ctx context.Context, chatID int64, cents int64) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.UpsertTotal, chatID, s.opts.DefaultFoodCents, cents); err != nil {
		return fmt.Errorf("set total for chat %d: %w", chatID, err)
	}
	return nil
}

func (s *Store) SetFood(ctx context.Context, chatID int64, cents int64) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.UpsertFood, chatID, cents); err != nil {
		return fmt.Errorf("set food for chat %d: %w", chatID, err)
	}
	return nil
}

func (s *Store) SetBalanceMessageRef(ctx context.Context, chatID int64, messageID int) error {
	var ref sql.NullInt64
	if messageID != 0 {
		ref = sql.NullInt64{Int64: int64(messageID), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.UpsertBalanceMessage, chatID, s.opts.DefaultFoodCents, ref); err != nil {
		return fmt.Errorf("set balance message for chat %d: %w", chatID, err)
	}
	return nil
}

func (s *Store) AppendEntry(ctx context.Context, e core.JournalEntry) (core.JournalEntry, error) {
	if err := e.Validate(); err != nil {
		return core.JournalEntry{}, err
	}
	return insertEntry(ctx, s.db, s.dialect, e, s.opts.Timestamp())
}

// ApplyTransaction runs the counter update and the journal insert in one
// database transaction.
func (s *Store) ApplyTransaction(ctx context.Context, t core.Transaction) (entry core.JournalEntry, err error) {
	if err := t.Validate(); err != nil {
		return core.JournalEntry{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.FromContext(ctx).WithComponent(log.ComponentStorage).ErrorContext(ctx, "Rollback failed",
					log.NewFields().WithChat(t.Entry.ChatID, t.Entry.ThreadID).WithError(rbErr).ToSlice()...)
			}
		}
	}()

	chatID := t.Entry.ChatID
	if _, err = tx.ExecContext(ctx, s.dialect.EnsureChat, chatID, s.opts.DefaultFoodCents); err != nil {
		return core.JournalEntry{}, fmt.Errorf("ensure chat %d: %w", chatID, err)
	}

	update := s.dialect.UpdateTotal
	if t.Counter == core.CounterFood {
		update = s.dialect.UpdateFood
	}
	if _, err = tx.ExecContext(ctx, update, t.NewValue, chatID); err != nil {
		return core.JournalEntry{}, fmt.Errorf("update %s for chat %d: %w", t.Counter, chatID, err)
	}

	entry, err = insertEntry(ctx, tx, s.dialect, t.Entry, s.opts.Timestamp())
	if err != nil {
		return core.JournalEntry{}, err
	}

	if err = tx.Commit(); err != nil {
		return core.JournalEntry{}, fmt.Errorf("commit transaction: %w", err)
	}
	return entry, nil
}

func (s *Store) ListEntries(ctx context.Context, chatID int64) ([]core.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.ListEntries, chatID)
	if err != nil {
		return nil, fmt.Errorf("list entries for chat %d: %w", chatID, err)
	}
	defer rows.Close()

	var entries []core.JournalEntry
	for rows.Next() {
		var (
			e         core.JournalEntry
			category  string
			direction string
		)
		if err := rows.Scan(&e.ID, &e.ChatID, &e.ThreadID, &category, &e.AmountCents, &direction, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Category = core.Category(category)
		e.Direction = core.Direction(direction)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getState(ctx context.Context, q querier, d Dialect, chatID int64) (core.ChatState, error) {
	st := core.ChatState{ChatID: chatID}
	var ref sql.NullInt64
	err := q.QueryRowContext(ctx, d.GetState, chatID).Scan(&st.TotalCents, &st.FoodCents, &ref)
	if err != nil {
		return core.ChatState{}, fmt.Errorf("get state for chat %d: %w", chatID, err)
	}
	if ref.Valid {
		st.BalanceMessageID = int(ref.Int64)
	}
	return st, nil
}

func insertEntry(ctx context.Context, q querier, d Dialect, e core.JournalEntry, createdAt string) (core.JournalEntry, error) {
	e.CreatedAt = createdAt
	err := q.QueryRowContext(ctx, d.InsertEntry,
		e.ChatID, e.ThreadID, string(e.Category), e.AmountCents, string(e.Direction), e.Note, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("append entry for chat %d: %w", e.ChatID, err)
	}
	return e, nil
}
