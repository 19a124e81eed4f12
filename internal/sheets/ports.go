package sheets

import (
	"context"

	"budgetbot/internal/events"
)

// Ports for outbound adapters.
type (
	// EntryWriter appends one journal entry to a mirror.
	EntryWriter interface {
		AppendEntry(ctx context.Context, e *events.EntryRecorded) (rowRef string, err error)
	}

	// HeaderWriter is implemented by mirrors that keep a header row.
	HeaderWriter interface {
		EnsureHeader(ctx context.Context) error
	}
)
