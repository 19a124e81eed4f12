package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetbot/internal/events"
	ports "budgetbot/internal/sheets"
)

// Sheet keeps mirrored rows in memory.
type Sheet struct {
	mu   sync.Mutex
	rows []events.EntryRecorded
}

var _ ports.EntryWriter = (*Sheet)(nil)

func New() *Sheet {
	return &Sheet{}
}

// AppendEntry stores a copy of the event and returns a synthetic row reference.
func (s *Sheet) AppendEntry(_ context.Context, e *events.EntryRecorded) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil entry")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, *e)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a snapshot of the appended entries.
func (s *Sheet) Rows() []events.EntryRecorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.EntryRecorded, len(s.rows))
	copy(out, s.rows)
	return out
}
