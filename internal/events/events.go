// Package events carries journal entries from the bot to the mirror worker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"budgetbot/internal/core"
)

// ErrMalformedEvent marks a message body that can never be processed.
var ErrMalformedEvent = errors.New("malformed event")

// EntryRecorded is published once a journal entry has been committed. It
// carries the counters as they were right after the write.
type EntryRecorded struct {
	EventID     string    `json:"event_id"`
	EntryID     int64     `json:"entry_id"`
	ChatID      int64     `json:"chat_id"`
	ThreadID    int64     `json:"thread_id"`
	Category    string    `json:"category"`
	Direction   string    `json:"direction"`
	AmountCents int64     `json:"amount_cents"`
	Note        string    `json:"note"`
	CreatedAt   string    `json:"created_at"`
	TotalCents  int64     `json:"total_cents"`
	FoodCents   int64     `json:"food_cents"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEntryRecorded builds the event for a committed entry.
func NewEntryRecorded(entry core.JournalEntry, totalCents, foodCents int64) *EntryRecorded {
	return &EntryRecorded{
		EventID:     uuid.New().String(),
		EntryID:     entry.ID,
		ChatID:      entry.ChatID,
		ThreadID:    entry.ThreadID,
		Category:    string(entry.Category),
		Direction:   string(entry.Direction),
		AmountCents: entry.AmountCents,
		Note:        entry.Note,
		CreatedAt:   entry.CreatedAt,
		TotalCents:  totalCents,
		FoodCents:   foodCents,
		Timestamp:   time.Now(),
	}
}

// Entry returns the journal entry the event describes.
func (e *EntryRecorded) Entry() core.JournalEntry {
	return core.JournalEntry{
		ID:          e.EntryID,
		ChatID:      e.ChatID,
		ThreadID:    e.ThreadID,
		Category:    core.Category(e.Category),
		AmountCents: e.AmountCents,
		Direction:   core.Direction(e.Direction),
		Note:        e.Note,
		CreatedAt:   e.CreatedAt,
	}
}

func (e *EntryRecorded) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EntryRecordedFromJSON decodes and checks an event. Every failure wraps
// ErrMalformedEvent.
func EntryRecordedFromJSON(data []byte) (*EntryRecorded, error) {
	var e EntryRecorded
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if _, err := uuid.Parse(e.EventID); err != nil {
		return nil, fmt.Errorf("%w: event_id: %v", ErrMalformedEvent, err)
	}
	if err := e.Entry().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &e, nil
}

// Publisher sends events to a broker.
type Publisher interface {
	PublishEntry(ctx context.Context, e *EntryRecorded) error
	Close() error
}

// Handler processes one event. Returning an error asks for redelivery.
type Handler func(ctx context.Context, e *EntryRecorded) error

// Consumer delivers events to a handler until ctx is done.
type Consumer interface {
	ConsumeEntries(ctx context.Context, handler Handler) error
	Close() error
}
