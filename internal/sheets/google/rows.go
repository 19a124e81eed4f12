package google

import (
	"github.com/shopspring/decimal"

	"budgetbot/internal/events"
)

// Header is the first row of the journal sheet.
var Header = []any{"Created at", "Chat", "Thread", "Category", "Direction", "Amount", "Note", "Total", "Food", "Event"}

// EntryRow lays out one journal entry. Amounts are numbers so the sheet can
// sum them; rows are written RAW so notes are never evaluated as formulas.
func EntryRow(e *events.EntryRecorded) []any {
	return []any{
		e.CreatedAt,
		e.ChatID,
		e.ThreadID,
		e.Category,
		e.Direction,
		centsToDecimal(e.AmountCents),
		e.Note,
		centsToDecimal(e.TotalCents),
		centsToDecimal(e.FoodCents),
		e.EventID,
	}
}

func centsToDecimal(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

// columnRange is the A1 range covering the Header columns of a sheet.
func columnRange(sheet string) string {
	return "'" + sheet + "'!A:" + string(rune('A'+len(Header)-1))
}
