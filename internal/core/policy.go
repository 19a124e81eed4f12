package core

import (
	"fmt"
	"html"
	"slices"
)

const (
	RoleBalance   ThreadRole = "balance"
	RoleFood      ThreadRole = "food"
	RoleFoodTopup ThreadRole = "food_topup"
	RoleApartment ThreadRole = "apartment"
	RoleTopup     ThreadRole = "topup"
	RoleGeneral   ThreadRole = "general_expense"
)

// ThreadRole is the fixed meaning of a forum thread.
type ThreadRole string

// ThreadRoleConfig maps thread ids to roles. A zero id means the role is not
// configured.
type ThreadRoleConfig struct {
	Balance        int64
	Food           int64
	FoodTopup      int64
	Apartment      int64
	Topup          int64
	GeneralExpense []int64
}

// Configured reports whether every mandatory thread has an id.
func (c ThreadRoleConfig) Configured() bool {
	return c.Balance != 0 && c.Food != 0 && c.Apartment != 0 && c.Topup != 0
}

// RoleOf returns the role of a thread. When ids overlap the first match wins,
// in the order balance, food, food top-up, apartment, top-up, general expense.
func (c ThreadRoleConfig) RoleOf(threadID int64) (ThreadRole, bool) {
	if threadID == 0 {
		return "", false
	}
	switch threadID {
	case c.Balance:
		return RoleBalance, true
	case c.Food:
		return RoleFood, true
	case c.FoodTopup:
		return RoleFoodTopup, true
	case c.Apartment:
		return RoleApartment, true
	case c.Topup:
		return RoleTopup, true
	}
	if slices.Contains(c.GeneralExpense, threadID) {
		return RoleGeneral, true
	}
	return "", false
}

// Effect is the outcome of applying one amount to a thread.
type Effect struct {
	TotalCents int64
	FoodCents  int64
	Category   Category
	Direction  Direction
	Counter    Counter
	Name       string
	Label      string
	Operator   string
	OldCents   int64
	NewCents   int64
	DeltaCents int64
}

// rule describes what a positive amount does in a thread; a negative amount
// does the opposite.
type rule struct {
	counter  Counter
	category Category
	positive Direction
	name     string
	label    string
	// reverseLabel replaces label when the amount goes against the thread's
	// usual direction. Empty means reuse label.
	reverseLabel string
}

var rules = map[ThreadRole]rule{
	RoleFood:      {counter: CounterFood, category: CategoryFood, positive: DirectionOut, name: "Food", label: "🍽 <b>Food</b>"},
	RoleFoodTopup: {counter: CounterFood, category: CategoryFoodTopup, positive: DirectionIn, name: "Food top-up", label: "🍽➕ <b>Food top-up</b>", reverseLabel: "🍽➖ <b>Food write-off</b>"},
	RoleTopup:     {counter: CounterTotal, category: CategoryTopup, positive: DirectionIn, name: "Top-up", label: "➕ <b>Top-up</b>", reverseLabel: "➖ <b>Withdrawal</b>"},
	RoleApartment: {counter: CounterTotal, category: CategoryApartment, positive: DirectionOut, name: "Apartment", label: "🏠 <b>Apartment</b>"},
	RoleGeneral:   {counter: CounterTotal, category: CategoryTotalOther, positive: DirectionOut, name: "Expense", label: "💰 <b>Expense</b>"},
}

// ApplyPolicy computes the new counters for an amount typed into a thread of
// the given role. It reports false for roles that do not take transactions.
// Counters may go negative.
func ApplyPolicy(role ThreadRole, sign int, amountCents, totalCents, foodCents int64) (Effect, bool) {
	r, ok := rules[role]
	if !ok {
		return Effect{}, false
	}

	dir := r.positive
	label := r.label
	if sign < 0 {
		dir = opposite(dir)
		if r.reverseLabel != "" {
			label = r.reverseLabel
		}
	}

	e := Effect{
		TotalCents: totalCents,
		FoodCents:  foodCents,
		Category:   r.category,
		Direction:  dir,
		Counter:    r.counter,
		Name:       r.name,
		Label:      label,
		DeltaCents: amountCents,
	}

	e.OldCents = totalCents
	if r.counter == CounterFood {
		e.OldCents = foodCents
	}
	if dir == DirectionIn {
		e.Operator = "+"
		e.NewCents = e.OldCents + amountCents
	} else {
		e.Operator = "-"
		e.NewCents = e.OldCents - amountCents
	}

	if r.counter == CounterFood {
		e.FoodCents = e.NewCents
	} else {
		e.TotalCents = e.NewCents
	}
	return e, true
}

// Transaction builds the store write for this effect.
func (e Effect) Transaction(chatID, threadID int64, note string) Transaction {
	return Transaction{
		Counter:  e.Counter,
		NewValue: e.NewCents,
		Entry: JournalEntry{
			ChatID:      chatID,
			ThreadID:    threadID,
			Category:    e.Category,
			AmountCents: e.DeltaCents,
			Direction:   e.Direction,
			Note:        note,
		},
	}
}

// Line renders the transition block shown under the balance.
func (e Effect) Line(note, when string) string {
	return fmt.Sprintf("%s: %s %s %s = <b>%s</b>\n📝 %s\n🕒 %s",
		e.Label,
		FormatCents(e.OldCents), e.Operator, FormatCents(e.DeltaCents),
		FormatCents(e.NewCents),
		html.EscapeString(note),
		when)
}

func opposite(d Direction) Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}
