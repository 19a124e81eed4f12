// Package storagetest holds behaviour checks every LedgerStore backend must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetbot/internal/core"
	"budgetbot/internal/storage"
)

// FixedNow is the clock the suite expects backends to be opened with.
var FixedNow = func() time.Time {
	return time.Date(2026, 10, 14, 18, 30, 0, 0, time.UTC)
}

// Options returns the options the suite expects backends to be opened with.
func Options() storage.Options {
	return storage.Options{DefaultFoodCents: core.DefaultFoodCents, Now: FixedNow}
}

// Run exercises a fresh store returned by open. Each subtest gets its own
// store.
func Run(t *testing.T, open func(t *testing.T) storage.LedgerStore) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.LedgerStore)
	}{
		{"DefaultsOnFirstRead", testDefaultsOnFirstRead},
		{"EnsureChatIdempotent", testEnsureChatIdempotent},
		{"Overwrites", testOverwrites},
		{"AppendEntry", testAppendEntry},
		{"AppendEntryRejectsNegative", testAppendEntryRejectsNegative},
		{"ApplyTransaction", testApplyTransaction},
		{"ApplyTransactionRejectsInvalid", testApplyTransactionRejectsInvalid},
		{"CountersMatchJournal", testCountersMatchJournal},
		{"ChatsAreIsolated", testChatsAreIsolated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func testDefaultsOnFirstRead(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	st, err := s.GetState(ctx, -1001)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	want := core.ChatState{ChatID: -1001, TotalCents: 0, FoodCents: core.DefaultFoodCents}
	if st != want {
		t.Fatalf("got %+v, want %+v", st, want)
	}
	if st.HasBalanceMessage() {
		t.Fatal("new chat must not track a balance message")
	}
}

func testEnsureChatIdempotent(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	if err := s.EnsureChat(ctx, 7); err != nil {
		t.Fatalf("EnsureChat: %v", err)
	}
	once, _ := s.GetState(ctx, 7)

	if err := s.SetTotal(ctx, 7, 1234); err != nil {
		t.Fatalf("SetTotal: %v", err)
	}
	if err := s.EnsureChat(ctx, 7); err != nil {
		t.Fatalf("second EnsureChat: %v", err)
	}
	twice, _ := s.GetState(ctx, 7)
	if twice.TotalCents != 1234 {
		t.Fatalf("EnsureChat reset existing state: %+v", twice)
	}

	if err := s.EnsureChat(ctx, 8); err != nil {
		t.Fatalf("EnsureChat: %v", err)
	}
	if err := s.EnsureChat(ctx, 8); err != nil {
		t.Fatalf("EnsureChat: %v", err)
	}
	other, _ := s.GetState(ctx, 8)
	once.ChatID = 8
	if other != once {
		t.Fatalf("ensure twice %+v differs from ensure once %+v", other, once)
	}
}

func testOverwrites(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	// Writes on an unseen chat create it.
	if err := s.SetFood(ctx, 1, -500); err != nil {
		t.Fatalf("SetFood: %v", err)
	}
	if err := s.SetTotal(ctx, 1, 1234567); err != nil {
		t.Fatalf("SetTotal: %v", err)
	}
	if err := s.SetBalanceMessageRef(ctx, 1, 42); err != nil {
		t.Fatalf("SetBalanceMessageRef: %v", err)
	}
	if err := s.SetBalanceMessageRef(ctx, 1, 43); err != nil {
		t.Fatalf("SetBalanceMessageRef: %v", err)
	}
	st, err := s.GetState(ctx, 1)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	want := core.ChatState{ChatID: 1, TotalCents: 1234567, FoodCents: -500, BalanceMessageID: 43}
	if st != want {
		t.Fatalf("got %+v, want %+v", st, want)
	}

	fresh, _ := s.GetState(ctx, 2)
	if err := s.SetBalanceMessageRef(ctx, 2, 9); err != nil {
		t.Fatalf("SetBalanceMessageRef: %v", err)
	}
	after, _ := s.GetState(ctx, 2)
	if after.FoodCents != fresh.FoodCents || after.TotalCents != fresh.TotalCents {
		t.Fatalf("message ref write touched counters: %+v -> %+v", fresh, after)
	}
}

func testAppendEntry(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	first, err := s.AppendEntry(ctx, core.JournalEntry{
		ChatID: 5, ThreadID: 33, Category: core.CategoryFood, AmountCents: 150000, Direction: core.DirectionOut, Note: "groceries",
	})
	if err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	second, err := s.AppendEntry(ctx, core.JournalEntry{
		ChatID: 5, ThreadID: 80, Category: core.CategoryTopup, AmountCents: 0, Direction: core.DirectionIn,
	})
	if err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	if first.ID <= 0 || second.ID <= first.ID {
		t.Fatalf("ids not monotonic: %d then %d", first.ID, second.ID)
	}
	if first.CreatedAt != "14.10.2026 18:30" {
		t.Fatalf("unexpected timestamp %q", first.CreatedAt)
	}

	entries, err := s.ListEntries(ctx, 5)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 || entries[0] != first || entries[1] != second {
		t.Fatalf("unexpected journal %+v", entries)
	}

	// Appending an entry never moves the counters.
	st, _ := s.GetState(ctx, 5)
	if st.TotalCents != 0 || st.FoodCents != core.DefaultFoodCents {
		t.Fatalf("AppendEntry changed counters: %+v", st)
	}
}

func testAppendEntryRejectsNegative(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	_, err := s.AppendEntry(ctx, core.JournalEntry{
		ChatID: 5, ThreadID: 33, Category: core.CategoryFood, AmountCents: -1, Direction: core.DirectionOut,
	})
	if !errors.Is(err, core.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	entries, _ := s.ListEntries(ctx, 5)
	if len(entries) != 0 {
		t.Fatalf("rejected entry was stored: %+v", entries)
	}
}

func testApplyTransaction(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	if err := s.SetTotal(ctx, 9, 500000); err != nil {
		t.Fatalf("SetTotal: %v", err)
	}

	entry, err := s.ApplyTransaction(ctx, core.Transaction{
		Counter:  core.CounterTotal,
		NewValue: 530000,
		Entry: core.JournalEntry{
			ChatID: 9, ThreadID: 78, Category: core.CategoryApartment, AmountCents: 30000, Direction: core.DirectionIn, Note: "refund",
		},
	})
	if err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}
	if entry.ID == 0 || entry.CreatedAt == "" {
		t.Fatalf("entry not stamped: %+v", entry)
	}

	st, _ := s.GetState(ctx, 9)
	if st.TotalCents != 530000 || st.FoodCents != core.DefaultFoodCents {
		t.Fatalf("unexpected state %+v", st)
	}

	if _, err := s.ApplyTransaction(ctx, core.Transaction{
		Counter:  core.CounterFood,
		NewValue: 1850000,
		Entry: core.JournalEntry{
			ChatID: 9, ThreadID: 33, Category: core.CategoryFood, AmountCents: 150000, Direction: core.DirectionOut,
		},
	}); err != nil {
		t.Fatalf("ApplyTransaction food: %v", err)
	}
	st, _ = s.GetState(ctx, 9)
	if st.TotalCents != 530000 || st.FoodCents != 1850000 {
		t.Fatalf("unexpected state after food %+v", st)
	}
}

func testApplyTransactionRejectsInvalid(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	before, _ := s.GetState(ctx, 3)
	_, err := s.ApplyTransaction(ctx, core.Transaction{
		Counter:  core.CounterTotal,
		NewValue: 99,
		Entry: core.JournalEntry{
			ChatID: 3, ThreadID: 78, Category: core.CategoryApartment, AmountCents: -5, Direction: core.DirectionOut,
		},
	})
	if !errors.Is(err, core.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	after, _ := s.GetState(ctx, 3)
	if after != before {
		t.Fatalf("rejected transaction changed state: %+v -> %+v", before, after)
	}
	entries, _ := s.ListEntries(ctx, 3)
	if len(entries) != 0 {
		t.Fatalf("rejected transaction wrote a journal entry: %+v", entries)
	}
}

// testCountersMatchJournal replays the journal and checks it agrees with the
// running counters.
func testCountersMatchJournal(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	const chatID = 11
	steps := []struct {
		role   core.ThreadRole
		thread int64
		sign   int
		amount int64
	}{
		{core.RoleTopup, 80, 1, 5000000},
		{core.RoleFood, 33, 1, 150000},
		{core.RoleApartment, 78, 1, 3500000},
		{core.RoleGeneral, 34, -1, 20000},
		{core.RoleFoodTopup, 247, 1, 300000},
		{core.RoleTopup, 80, -1, 100},
		{core.RoleFood, 33, -1, 999},
	}
	for _, step := range steps {
		st, err := s.GetState(ctx, chatID)
		if err != nil {
			t.Fatalf("GetState: %v", err)
		}
		eff, ok := core.ApplyPolicy(step.role, step.sign, step.amount, st.TotalCents, st.FoodCents)
		if !ok {
			t.Fatalf("no effect for %s", step.role)
		}
		if _, err := s.ApplyTransaction(ctx, eff.Transaction(chatID, step.thread, "")); err != nil {
			t.Fatalf("ApplyTransaction: %v", err)
		}
	}

	entries, err := s.ListEntries(ctx, chatID)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != len(steps) {
		t.Fatalf("journal has %d entries, want %d", len(entries), len(steps))
	}

	total, food := int64(0), core.DefaultFoodCents
	for _, e := range entries {
		delta := e.AmountCents
		if e.Direction == core.DirectionOut {
			delta = -delta
		}
		switch e.Category {
		case core.CategoryFood, core.CategoryFoodTopup:
			food += delta
		default:
			total += delta
		}
	}
	st, _ := s.GetState(ctx, chatID)
	if st.TotalCents != total || st.FoodCents != food {
		t.Fatalf("counters total=%d food=%d drifted from journal total=%d food=%d", st.TotalCents, st.FoodCents, total, food)
	}
}

func testChatsAreIsolated(t *testing.T, s storage.LedgerStore) {
	ctx := context.Background()
	if err := s.SetTotal(ctx, 100, 1); err != nil {
		t.Fatalf("SetTotal: %v", err)
	}
	if _, err := s.AppendEntry(ctx, core.JournalEntry{ChatID: 100, ThreadID: 1, Category: core.CategoryTopup, AmountCents: 1, Direction: core.DirectionIn}); err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	other, _ := s.GetState(ctx, 200)
	if other.TotalCents != 0 {
		t.Fatalf("chat 200 saw chat 100's total: %+v", other)
	}
	entries, _ := s.ListEntries(ctx, 200)
	if len(entries) != 0 {
		t.Fatalf("chat 200 saw chat 100's journal: %+v", entries)
	}
}
