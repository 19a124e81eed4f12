package worker

import (
	"context"
	"fmt"
	"time"

	"budgetbot/internal/cache"
	"budgetbot/internal/events"
	"budgetbot/internal/log"
	"budgetbot/internal/sheets"
)

const (
	dedupeSize = 10000
	dedupeTTL  = 24 * time.Hour
)

// MirrorWorker copies journal events into a sheet, one row per entry.
type MirrorWorker struct {
	sheet  sheets.EntryWriter
	seen   *cache.Recent
	logger *log.Logger
}

func NewMirrorWorker(sheet sheets.EntryWriter, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		sheet:  sheet,
		seen:   cache.NewRecent(dedupeSize, dedupeTTL),
		logger: logger,
	}
}

// Run prepares the sheet and consumes events until ctx is done.
func (w *MirrorWorker) Run(ctx context.Context, consumer events.Consumer) error {
	if hw, ok := w.sheet.(sheets.HeaderWriter); ok {
		if err := hw.EnsureHeader(ctx); err != nil {
			return fmt.Errorf("ensure sheet header: %w", err)
		}
	}

	go w.seen.RunCleanup(ctx, time.Hour)

	w.logger.InfoContext(ctx, "Mirror worker started")
	return consumer.ConsumeEntries(ctx, w.HandleEntry)
}

// HandleEntry appends one event. Events already mirrored by this process
// are skipped so redeliveries do not duplicate rows.
func (w *MirrorWorker) HandleEntry(ctx context.Context, e *events.EntryRecorded) error {
	logger := w.logger.WithChat(e.ChatID, e.ThreadID).With(log.FieldEventID, e.EventID, log.FieldEntryID, e.EntryID)

	if w.seen.Contains(e.EventID) {
		logger.InfoContext(ctx, "Skipping already mirrored entry")
		return nil
	}

	ref, err := w.sheet.AppendEntry(ctx, e)
	if err != nil {
		return fmt.Errorf("append entry %d: %w", e.EntryID, err)
	}
	w.seen.Add(e.EventID)

	fields := log.NewFields().
		WithOperation(log.OpAppend).
		WithEntry(e.Category, e.Direction, e.AmountCents)
	fields["sheets_ref"] = ref
	fields["seen"] = w.seen.Size()
	logger.InfoContext(ctx, "Mirrored entry", fields.ToSlice()...)
	return nil
}
