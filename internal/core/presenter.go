package core

import (
	"fmt"
	"strings"
)

// Annotations shown under the balance after an administrative overwrite.
const (
	AnnotationTotalSet = "✅ Total balance set."
	AnnotationFoodSet  = "✅ Food budget set."
)

// RenderBalance builds the HTML text of the balance message. last, when not
// empty, is appended after a blank line.
func RenderBalance(totalCents, foodCents int64, last, when string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 <b>Balance</b>\n")
	fmt.Fprintf(&b, "💰 <b>Total:</b> %s\n", FormatCents(totalCents))
	fmt.Fprintf(&b, "🍽 <b>Food:</b> %s\n", FormatCents(foodCents))
	fmt.Fprintf(&b, "🕒 %s", when)
	if last != "" {
		b.WriteString("\n\n")
		b.WriteString(last)
	}
	return b.String()
}
