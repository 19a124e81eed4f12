// Package storage defines the ledger persistence port shared by the sqlite,
// postgres and memory backends.
package storage

import (
	"context"
	"time"

	"budgetbot/internal/core"
)

// LedgerStore keeps per-chat counters and the append-only journal.
// Reads on a chat that was never seen materialize its default state.
type LedgerStore interface {
	// EnsureChat creates the chat state with defaults if it does not exist.
	EnsureChat(ctx context.Context, chatID int64) error
	GetState(ctx context.Context, chatID int64) (core.ChatState, error)

	SetTotal(ctx context.Context, chatID int64, cents int64) error
	SetFood(ctx context.Context, chatID int64, cents int64) error
	SetBalanceMessageRef(ctx context.Context, chatID int64, messageID int) error

	// AppendEntry writes one journal entry and returns it with its id and
	// timestamp assigned.
	AppendEntry(ctx context.Context, e core.JournalEntry) (core.JournalEntry, error)
	// ApplyTransaction overwrites one counter and appends the matching
	// journal entry atomically.
	ApplyTransaction(ctx context.Context, tx core.Transaction) (core.JournalEntry, error)
	// ListEntries returns the journal of a chat in insertion order.
	ListEntries(ctx context.Context, chatID int64) ([]core.JournalEntry, error)

	Close() error
}

// Options are shared by every backend.
type Options struct {
	// DefaultFoodCents is the food budget of a newly created chat.
	DefaultFoodCents int64
	// Now stamps journal entries. Defaults to time.Now.
	Now func() time.Time
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Timestamp formats the current time for a journal entry.
func (o Options) Timestamp() string {
	return o.WithDefaults().Now().Format(core.TimestampLayout)
}

// Pinger is implemented by stores that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
