package core

import (
	"math"
	"regexp"
	"strings"
)

// messagePattern captures a leading amount (digits may be split by spaces)
// and everything after it as the note.
var messagePattern = regexp.MustCompile(`(?s)^\s*([+-]?\d[\d\s]*(?:[.,]\d{1,2})?)\s*(.*)$`)

// ParsedMessage is an amount typed into a thread. AmountCents is the
// magnitude; Sign is -1 when the amount was entered as negative, else +1.
type ParsedMessage struct {
	AmountCents int64
	Note        string
	Sign        int
}

// ParseMessage extracts the amount and note from a chat message.
// It reports false for text that does not start with an amount and for
// amounts of exactly zero, which are ordinary conversation rather than entries.
func ParseMessage(text string) (ParsedMessage, bool) {
	m := messagePattern.FindStringSubmatch(text)
	if m == nil {
		return ParsedMessage{}, false
	}

	cents, err := ParseAmount(m[1])
	// MinInt64 has no positive magnitude.
	if err != nil || cents == 0 || cents == math.MinInt64 {
		return ParsedMessage{}, false
	}

	p := ParsedMessage{
		AmountCents: cents,
		Note:        strings.TrimSpace(m[2]),
		Sign:        1,
	}
	if cents < 0 {
		p.AmountCents = -cents
		p.Sign = -1
	}
	return p, true
}
