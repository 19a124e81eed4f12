package core

import (
	"errors"
	"fmt"
)

const (
	CategoryFood       Category = "food"
	CategoryFoodTopup  Category = "food_topup"
	CategoryApartment  Category = "apart"
	CategoryTopup      Category = "topup"
	CategoryTotalOther Category = "total_other"
)

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

const (
	CounterTotal Counter = "total"
	CounterFood  Counter = "food"
)

// DefaultFoodCents is the food budget a chat starts with (20000.00).
const DefaultFoodCents int64 = 2000000

// TimestampLayout is used for journal entries and the balance message.
const TimestampLayout = "02.01.2006 15:04"

type (
	Category  string
	Direction string

	// Counter names one of the two running balances held on ChatState.
	Counter string

	// ChatState is the running state of one chat. BalanceMessageID is zero
	// when no balance message is tracked.
	ChatState struct {
		ChatID           int64
		TotalCents       int64
		FoodCents        int64
		BalanceMessageID int
	}

	// JournalEntry is one immutable line of the append-only journal.
	// AmountCents is always the magnitude; Direction carries the sign.
	JournalEntry struct {
		ID          int64
		ChatID      int64
		ThreadID    int64
		Category    Category
		AmountCents int64
		Direction   Direction
		Note        string
		CreatedAt   string
	}

	// Transaction is a counter overwrite plus the journal entry describing it.
	// Stores apply both in one atomic step.
	Transaction struct {
		Counter  Counter
		NewValue int64
		Entry    JournalEntry
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidEntry  = errors.New("invalid journal entry")
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryFood, CategoryFoodTopup, CategoryApartment, CategoryTopup, CategoryTotalOther:
		return true
	default:
		return false
	}
}

func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

func (c Counter) IsValid() bool {
	return c == CounterTotal || c == CounterFood
}

// HasBalanceMessage reports whether a balance message is tracked.
func (s ChatState) HasBalanceMessage() bool {
	return s.BalanceMessageID != 0
}

func (e JournalEntry) Validate() error {
	if e.AmountCents < 0 {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidEntry)
	}
	if !e.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidEntry, e.Category)
	}
	if !e.Direction.IsValid() {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidEntry, e.Direction)
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Counter.IsValid() {
		return fmt.Errorf("%w: unknown counter %q", ErrInvalidEntry, t.Counter)
	}
	if err := t.Entry.Validate(); err != nil {
		return err
	}
	return nil
}

// Apply returns s with the transaction's counter overwritten.
func (t Transaction) Apply(s ChatState) ChatState {
	switch t.Counter {
	case CounterTotal:
		s.TotalCents = t.NewValue
	case CounterFood:
		s.FoodCents = t.NewValue
	}
	return s
}
