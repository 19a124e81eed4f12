package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"budgetbot/internal/core"
	"budgetbot/internal/events"
	"budgetbot/internal/log"
	"budgetbot/internal/storage"
	"budgetbot/internal/storage/memory"
	"budgetbot/internal/storage/storagetest"
)

const chatID = int64(-1001234)

type editCall struct {
	ChatID    int64
	MessageID int
	Text      string
}

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	sent    []OutgoingMessage
	edits   []editCall
	editErr error
	sendErr error
}

func (m *fakeMessenger) Send(_ context.Context, msg OutgoingMessage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, msg)
	return 1000 + m.nextID, nil
}

func (m *fakeMessenger) Edit(_ context.Context, chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, editCall{chatID, messageID, text})
	return m.editErr
}

// inThread returns the messages sent to a thread.
func (m *fakeMessenger) inThread(thread int64) []OutgoingMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OutgoingMessage
	for _, msg := range m.sent {
		if msg.ThreadID == thread {
			out = append(out, msg)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.EntryRecorded
	err    error
}

func (p *recordingPublisher) PublishEntry(_ context.Context, e *events.EntryRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	store     *memory.Store
	messenger *fakeMessenger
	events    *recordingPublisher
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.New(storagetest.Options()),
		messenger: &fakeMessenger{},
		events:    &recordingPublisher{},
	}
	f.service = NewService(f.store, testThreads, f.messenger, Options{
		Events:   f.events,
		Now:      storagetest.FixedNow,
		Location: time.UTC,
	})
	return f
}

func (f *fixture) post(t *testing.T, thread int64, text string) {
	t.Helper()
	if err := f.service.Handle(context.Background(), Incoming{ChatID: chatID, ThreadID: thread, MessageID: 7, Text: text}); err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
}

func (f *fixture) state(t *testing.T) core.ChatState {
	t.Helper()
	st, err := f.store.GetState(context.Background(), chatID)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	return st
}

func (f *fixture) entries(t *testing.T) []core.JournalEntry {
	t.Helper()
	entries, err := f.store.ListEntries(context.Background(), chatID)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	return entries
}

func TestFoodExpense(t *testing.T) {
	f := newFixture(t)

	f.post(t, testThreads.Food, "1500 groceries")

	st := f.state(t)
	if st.FoodCents != 1850000 || st.TotalCents != 0 {
		t.Fatalf("state = %+v, want food 1850000 and total 0", st)
	}

	entries := f.entries(t)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Category != core.CategoryFood || e.Direction != core.DirectionOut || e.AmountCents != 150000 || e.Note != "groceries" || e.ThreadID != testThreads.Food {
		t.Fatalf("unexpected entry %+v", e)
	}

	balance := f.messenger.inThread(testThreads.Balance)
	if len(balance) != 1 || !balance[0].HTML {
		t.Fatalf("expected one HTML balance message, got %+v", balance)
	}
	want := "📌 <b>Balance</b>\n" +
		"💰 <b>Total:</b> 0.00\n" +
		"🍽 <b>Food:</b> 18 500.00\n" +
		"🕒 14.10.2026 18:30\n\n" +
		"🍽 <b>Food</b>: 20 000.00 - 1 500.00 = <b>18 500.00</b>\n" +
		"📝 groceries\n" +
		"🕒 14.10.2026 18:30"
	if balance[0].Text != want {
		t.Fatalf("balance text:\n%s\nwant:\n%s", balance[0].Text, want)
	}
	if st.BalanceMessageID != 1001 {
		t.Fatalf("balance message ref = %d, want 1001", st.BalanceMessageID)
	}

	replies := f.messenger.inThread(testThreads.Food)
	if len(replies) != 1 || replies[0].Text != "✅ Recorded (Food)." || replies[0].ReplyTo != 7 {
		t.Fatalf("unexpected replies %+v", replies)
	}

	if len(f.events.events) != 1 || f.events.events[0].FoodCents != 1850000 || f.events.events[0].EntryID != e.ID {
		t.Fatalf("unexpected events %+v", f.events.events)
	}
}

func TestApartmentRefund(t *testing.T) {
	f := newFixture(t)
	if err := f.store.SetTotal(context.Background(), chatID, 500000); err != nil {
		t.Fatal(err)
	}

	f.post(t, testThreads.Apartment, "-300 refund")

	if st := f.state(t); st.TotalCents != 530000 || st.FoodCents != core.DefaultFoodCents {
		t.Fatalf("state = %+v, want total 530000 and untouched food", st)
	}
	entries := f.entries(t)
	if len(entries) != 1 || entries[0].Category != core.CategoryApartment || entries[0].Direction != core.DirectionIn || entries[0].AmountCents != 30000 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestThreadEffects(t *testing.T) {
	tests := []struct {
		name      string
		thread    int64
		text      string
		wantTotal int64
		wantFood  int64
		reply     string
	}{
		{"top-up", testThreads.Topup, "1000 salary", 100000, 2000000, "✅ Recorded (Top-up)."},
		{"withdrawal", testThreads.Topup, "-1000", -100000, 2000000, "✅ Recorded (Top-up)."},
		{"food top-up", testThreads.FoodTopup, "500", 0, 2050000, "✅ Recorded (Food top-up)."},
		{"general expense", 43, "12,5 taxi", -1250, 2000000, "✅ Recorded (Expense)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.post(t, tt.thread, tt.text)
			st := f.state(t)
			if st.TotalCents != tt.wantTotal || st.FoodCents != tt.wantFood {
				t.Fatalf("state = %+v, want total %d food %d", st, tt.wantTotal, tt.wantFood)
			}
			replies := f.messenger.inThread(tt.thread)
			if len(replies) != 1 || replies[0].Text != tt.reply {
				t.Fatalf("unexpected replies %+v", replies)
			}
		})
	}
}

func TestIgnoredMessagesHaveNoEffect(t *testing.T) {
	f := newFixture(t)
	for _, m := range []struct {
		thread int64
		text   string
	}{
		{0, "1500"},
		{testThreads.Balance, "1500"},
		{99, "1500"},
		{testThreads.Food, "hello"},
		{testThreads.Food, "0"},
		{testThreads.Food, "/unknown"},
	} {
		f.post(t, m.thread, m.text)
	}
	if len(f.messenger.sent) != 0 || len(f.messenger.edits) != 0 {
		t.Fatalf("expected no outgoing messages, got %+v %+v", f.messenger.sent, f.messenger.edits)
	}
	if len(f.entries(t)) != 0 {
		t.Fatal("expected an empty journal")
	}
}

func TestSetTotalWrongThread(t *testing.T) {
	f := newFixture(t)

	f.post(t, testThreads.Food, "/settotal 12345.67")

	replies := f.messenger.inThread(testThreads.Food)
	if len(replies) != 1 || replies[0].Text != "Use /settotal in the Balance thread." {
		t.Fatalf("unexpected replies %+v", replies)
	}
	if st := f.state(t); st.TotalCents != 0 || st.HasBalanceMessage() {
		t.Fatalf("state changed: %+v", st)
	}
	if len(f.entries(t)) != 0 {
		t.Fatal("a command must not write the journal")
	}
}

func TestAdminCommands(t *testing.T) {
	f := newFixture(t)

	f.post(t, testThreads.Balance, "/settotal 12345.67")
	f.post(t, testThreads.Balance, "/setfood 100")

	st := f.state(t)
	if st.TotalCents != 1234567 || st.FoodCents != 10000 {
		t.Fatalf("state = %+v", st)
	}
	if len(f.entries(t)) != 0 {
		t.Fatal("overwrites must not write the journal")
	}

	var balance, replies []OutgoingMessage
	for _, m := range f.messenger.inThread(testThreads.Balance) {
		if m.ReplyTo == 0 {
			balance = append(balance, m)
		} else {
			replies = append(replies, m)
		}
	}
	if len(balance) != 1 || !strings.HasSuffix(balance[0].Text, "\n\n"+core.AnnotationTotalSet) {
		t.Fatalf("unexpected balance messages %+v", balance)
	}
	if len(f.messenger.edits) != 1 || !strings.HasSuffix(f.messenger.edits[0].Text, "\n\n"+core.AnnotationFoodSet) {
		t.Fatalf("second overwrite should edit, got %+v", f.messenger.edits)
	}
	if len(replies) != 2 || replies[0].Text != "✅ Done." || replies[1].Text != "✅ Done." {
		t.Fatalf("unexpected replies %+v", replies)
	}
}

func TestCommandReplies(t *testing.T) {
	tests := []struct {
		thread int64
		text   string
		want   string
	}{
		{testThreads.Balance, "/settotal", "Format: /settotal 10000.00"},
		{testThreads.Balance, "/setfood abc", "Could not parse the amount. Example: /setfood 12345.67"},
		{testThreads.Food, "/where", fmt.Sprintf("chat_id=%d\nthread_id=33", chatID)},
		{0, "/where", fmt.Sprintf("chat_id=%d\nthread_id=none", chatID)},
		{0, "/start", startHelp},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f := newFixture(t)
			f.post(t, tt.thread, tt.text)
			if len(f.messenger.sent) != 1 || f.messenger.sent[0].Text != tt.want {
				t.Fatalf("sent %+v, want %q", f.messenger.sent, tt.want)
			}
			if f.messenger.sent[0].HTML {
				t.Fatal("replies are plain text")
			}
		})
	}
}

func TestBalanceMessageIsEditedInPlace(t *testing.T) {
	f := newFixture(t)

	f.post(t, testThreads.Food, "100")
	f.post(t, testThreads.Topup, "200")
	f.post(t, testThreads.Apartment, "50")

	if n := len(f.messenger.inThread(testThreads.Balance)); n != 1 {
		t.Fatalf("expected exactly one balance message, got %d", n)
	}
	if len(f.messenger.edits) != 2 {
		t.Fatalf("expected two edits, got %d", len(f.messenger.edits))
	}
	ref := f.state(t).BalanceMessageID
	for _, e := range f.messenger.edits {
		if e.MessageID != ref || e.ChatID != chatID {
			t.Fatalf("edit %+v does not target the tracked message %d", e, ref)
		}
	}
	if !strings.Contains(f.messenger.edits[1].Text, "💰 <b>Total:</b> 150.00") {
		t.Fatalf("last edit shows stale totals:\n%s", f.messenger.edits[1].Text)
	}
}

func TestEditFailureFallsBackToSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.SetBalanceMessageRef(ctx, chatID, 555); err != nil {
		t.Fatal(err)
	}
	f.messenger.editErr = errors.New("Bad Request: message to edit not found")

	f.post(t, testThreads.Food, "10")

	if len(f.messenger.edits) != 1 || f.messenger.edits[0].MessageID != 555 {
		t.Fatalf("expected one edit attempt of 555, got %+v", f.messenger.edits)
	}
	if n := len(f.messenger.inThread(testThreads.Balance)); n != 1 {
		t.Fatalf("expected a new balance message, got %d", n)
	}
	if ref := f.state(t).BalanceMessageID; ref != 1001 {
		t.Fatalf("ref = %d, want the new message 1001", ref)
	}
}

func TestEditNotModifiedIsSuccess(t *testing.T) {
	f := newFixture(t)
	if err := f.store.SetBalanceMessageRef(context.Background(), chatID, 555); err != nil {
		t.Fatal(err)
	}
	f.messenger.editErr = fmt.Errorf("edit: %w", ErrNotModified)

	f.post(t, testThreads.Balance, "/setfood 20000")

	if n := len(f.messenger.inThread(testThreads.Balance)); n != 1 {
		t.Fatalf("only the command reply should be sent, got %d messages", n)
	}
	if ref := f.state(t).BalanceMessageID; ref != 555 {
		t.Fatalf("ref changed to %d", ref)
	}
}

func TestSendFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.messenger.sendErr = errors.New("network down")

	err := f.service.Handle(context.Background(), Incoming{ChatID: chatID, ThreadID: testThreads.Food, Text: "10"})
	if err == nil || !strings.Contains(err.Error(), "send balance message") {
		t.Fatalf("expected send error, got %v", err)
	}
	// the transaction was committed before the display failed
	if st := f.state(t); st.FoodCents != core.DefaultFoodCents-1000 {
		t.Fatalf("state = %+v", st)
	}
}

func TestEventFailureDoesNotFailMessage(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker unavailable")

	f.post(t, testThreads.Food, "10")

	if len(f.events.events) != 1 {
		t.Fatal("expected a publish attempt")
	}
	if replies := f.messenger.inThread(testThreads.Food); len(replies) != 1 {
		t.Fatalf("expected the usual reply, got %+v", replies)
	}
}

func TestNoEventsPublisher(t *testing.T) {
	store := memory.New(storagetest.Options())
	s := NewService(store, testThreads, &fakeMessenger{}, Options{})
	if err := s.Handle(context.Background(), Incoming{ChatID: chatID, ThreadID: testThreads.Food, Text: "10"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

type failingStore struct {
	storage.LedgerStore
	err error
}

func (s failingStore) ApplyTransaction(context.Context, core.Transaction) (core.JournalEntry, error) {
	return core.JournalEntry{}, s.err
}

func TestPersistenceFailureAborts(t *testing.T) {
	boom := errors.New("disk full")
	store := failingStore{LedgerStore: memory.New(storagetest.Options()), err: boom}
	m := &fakeMessenger{}
	pub := &recordingPublisher{}
	s := NewService(store, testThreads, m, Options{Events: pub})

	err := s.Handle(context.Background(), Incoming{ChatID: chatID, ThreadID: testThreads.Food, Text: "10"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the store error, got %v", err)
	}
	if len(m.sent) != 0 || len(pub.events) != 0 {
		t.Fatalf("nothing may be published after a failed write: %+v %+v", m.sent, pub.events)
	}
}

func TestConcurrentMessagesAreSerialized(t *testing.T) {
	f := newFixture(t)
	const n = 50

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			thread := testThreads.Topup
			if i%2 == 0 {
				thread = testThreads.Food
			}
			errs <- f.service.Handle(context.Background(), Incoming{ChatID: chatID, ThreadID: thread, Text: "1"})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	st := f.state(t)
	if st.TotalCents != 25*100 || st.FoodCents != core.DefaultFoodCents-25*100 {
		t.Fatalf("lost updates: %+v", st)
	}
	if len(f.entries(t)) != n {
		t.Fatalf("expected %d entries", n)
	}
	if b := f.messenger.inThread(testThreads.Balance); len(b) != 1 {
		t.Fatalf("expected one balance message, got %d", len(b))
	}
}

func TestServiceAbsoluteSetters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.service.SetTotalAbsolute(ctx, chatID, -500); err != nil {
		t.Fatal(err)
	}
	if err := f.service.SetFoodAbsolute(ctx, chatID, 42); err != nil {
		t.Fatal(err)
	}
	if st := f.state(t); st.TotalCents != -500 || st.FoodCents != 42 {
		t.Fatalf("state = %+v", st)
	}
}

func TestLongCyrillicNoteIsRecorded(t *testing.T) {
	f := newFixture(t)
	note := strings.Repeat("е", 2100)
	f.post(t, testThreads.Food, "1500 "+note)

	entries := f.entries(t)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if entries[0].Note != note {
		t.Fatalf("note was altered: %d bytes, want %d", len(entries[0].Note), len(note))
	}
	if st := f.state(t); st.FoodCents != core.DefaultFoodCents-150000 {
		t.Fatalf("food = %d", st.FoodCents)
	}
	if len(f.events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.events.events))
	}
	raw, err := f.events.events[0].ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if _, err := events.EntryRecordedFromJSON(raw); err != nil {
		t.Fatalf("event with long note should decode: %v", err)
	}
}

func TestHandleLogsWithChatContext(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t)
	f.messenger.editErr = errors.New("message to edit not found")
	f.service = NewService(f.store, testThreads, f.messenger, Options{
		Events:   f.events,
		Now:      storagetest.FixedNow,
		Location: time.UTC,
		Logger:   log.New(log.Config{Output: &buf, Component: log.ComponentBot}),
	})
	if err := f.store.SetBalanceMessageRef(context.Background(), chatID, 500); err != nil {
		t.Fatalf("SetBalanceMessageRef: %v", err)
	}

	// The caller's logger attributes survive, the component becomes the service's.
	upstream := log.New(log.Config{Output: &buf, Component: log.ComponentTelegram}).With(log.FieldUpdateID, 77)
	ctx := log.NewContext(context.Background(), upstream)
	if err := f.service.Handle(ctx, Incoming{ChatID: chatID, ThreadID: testThreads.Food, MessageID: 7, Text: "10 bread"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var warn string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "Editing balance message failed") {
			warn = line
		}
	}
	for _, want := range []string{"component=bot", "update_id=77", fmt.Sprintf("chat_id=%d", chatID), "thread_id=33", "operation=edit", "message_id=500"} {
		if !strings.Contains(warn, want) {
			t.Errorf("warning %q does not contain %q", warn, want)
		}
	}
}
