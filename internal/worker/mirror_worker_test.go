package worker

import (
	"context"
	"errors"
	"testing"

	"budgetbot/internal/core"
	"budgetbot/internal/events"
	"budgetbot/internal/sheets/memory"
)

func entryEvent(id int64) *events.EntryRecorded {
	return events.NewEntryRecorded(core.JournalEntry{
		ID:          id,
		ChatID:      -100,
		ThreadID:    33,
		Category:    core.CategoryFood,
		Direction:   core.DirectionOut,
		AmountCents: 100 * id,
	}, 0, 0)
}

// sliceConsumer hands its events to the handler and stops at the first error.
type sliceConsumer struct {
	events []*events.EntryRecorded
	errs   []error
}

func (c *sliceConsumer) ConsumeEntries(ctx context.Context, handler events.Handler) error {
	for _, e := range c.events {
		c.errs = append(c.errs, handler(ctx, e))
	}
	return nil
}

func (c *sliceConsumer) Close() error { return nil }

type headerSheet struct {
	*memory.Sheet
	headerCalls int
	headerErr   error
}

func (s *headerSheet) EnsureHeader(context.Context) error {
	s.headerCalls++
	return s.headerErr
}

func TestMirrorWorkerAppendsInOrder(t *testing.T) {
	sheet := &headerSheet{Sheet: memory.New()}
	w := NewMirrorWorker(sheet, nil)

	first, second := entryEvent(1), entryEvent(2)
	c := &sliceConsumer{events: []*events.EntryRecorded{first, second, first}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Run(ctx, c); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sheet.headerCalls != 1 {
		t.Fatalf("EnsureHeader called %d times", sheet.headerCalls)
	}
	rows := sheet.Rows()
	if len(rows) != 2 || rows[0].EntryID != 1 || rows[1].EntryID != 2 {
		t.Fatalf("unexpected rows %+v", rows)
	}
	for i, err := range c.errs {
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
	}
}

func TestMirrorWorkerHeaderFailure(t *testing.T) {
	boom := errors.New("permission denied")
	w := NewMirrorWorker(&headerSheet{Sheet: memory.New(), headerErr: boom}, nil)
	if err := w.Run(context.Background(), &sliceConsumer{}); !errors.Is(err, boom) {
		t.Fatalf("expected header error, got %v", err)
	}
}

type failingSheet struct{ err error }

func (s failingSheet) AppendEntry(context.Context, *events.EntryRecorded) (string, error) {
	return "", s.err
}

func TestMirrorWorkerRetriesFailedAppend(t *testing.T) {
	boom := errors.New("quota exceeded")
	w := NewMirrorWorker(failingSheet{err: boom}, nil)
	e := entryEvent(1)

	if err := w.HandleEntry(context.Background(), e); !errors.Is(err, boom) {
		t.Fatalf("expected append error, got %v", err)
	}
	// a failed append must not be remembered as mirrored
	if w.seen.Contains(e.EventID) {
		t.Fatal("failed event marked as seen")
	}
}
