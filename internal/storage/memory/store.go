// Package memory is an in-process LedgerStore used by tests and by
// DATA_BACKEND=memory.
package memory

import (
	"context"
	"sync"

	"budgetbot/internal/core"
	"budgetbot/internal/storage"
)

// Store keeps chat state and the journal in maps guarded by one mutex.
type Store struct {
	mu      sync.Mutex
	opts    storage.Options
	states  map[int64]core.ChatState
	entries []core.JournalEntry
	nextID  int64
}

var (
	_ storage.LedgerStore = (*Store)(nil)
	_ storage.Pinger      = (*Store)(nil)
)

func New(opts storage.Options) *Store {
	return &Store{
		opts:   opts.WithDefaults(),
		states: make(map[int64]core.ChatState),
		nextID: 1,
	}
}

func (s *Store) EnsureChat(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(chatID)
	return nil
}

func (s *Store) GetState(ctx context.Context, chatID int64) (core.ChatState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(chatID), nil
}

func (s *Store) SetTotal(ctx context.Context, chatID int64, cents int64) error {
	s.update(chatID, func(st *core.ChatState) { st.TotalCents = cents })
	return nil
}

func (s *Store) SetFood(ctx context.Context, chatID int64, cents int64) error {
	s.update(chatID, func(st *core.ChatState) { st.FoodCents = cents })
	return nil
}

func (s *Store) SetBalanceMessageRef(ctx context.Context, chatID int64, messageID int) error {
	s.update(chatID, func(st *core.ChatState) { st.BalanceMessageID = messageID })
	return nil
}

func (s *Store) AppendEntry(ctx context.Context, e core.JournalEntry) (core.JournalEntry, error) {
	if err := e.Validate(); err != nil {
		return core.JournalEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(e), nil
}

func (s *Store) ApplyTransaction(ctx context.Context, tx core.Transaction) (core.JournalEntry, error) {
	if err := tx.Validate(); err != nil {
		return core.JournalEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensureLocked(tx.Entry.ChatID)
	s.states[st.ChatID] = tx.Apply(st)
	return s.appendLocked(tx.Entry), nil
}

func (s *Store) ListEntries(ctx context.Context, chatID int64) ([]core.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.JournalEntry
	for _, e := range s.entries {
		if e.ChatID == chatID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) update(chatID int64, fn func(*core.ChatState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureLocked(chatID)
	fn(&st)
	s.states[chatID] = st
}

func (s *Store) ensureLocked(chatID int64) core.ChatState {
	st, ok := s.states[chatID]
	if !ok {
		st = core.ChatState{ChatID: chatID, FoodCents: s.opts.DefaultFoodCents}
		s.states[chatID] = st
	}
	return st
}

func (s *Store) appendLocked(e core.JournalEntry) core.JournalEntry {
	e.ID = s.nextID
	e.CreatedAt = s.opts.Timestamp()
	s.nextID++
	s.entries = append(s.entries, e)
	return e
}
