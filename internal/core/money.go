// Package core provides the money codec, message parsing, thread policy and
// balance rendering used by the bot.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between minor units (cents) and their display form.
package core

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// amountGrammar is matched after all whitespace has been stripped.
var amountGrammar = regexp.MustCompile(`^[+-]?\d+([.,]\d{1,2})?$`)

// ParseAmount converts a human-entered decimal string to signed cents.
//
// It accepts an optional leading sign, digit groups separated by whitespace
// and a fractional part of one or two digits after a dot or a comma. A single
// fractional digit counts as tenths.
//
// Examples:
//
//	ParseAmount("2453.13")  -> 245313, nil
//	ParseAmount("2453,1")   -> 245310, nil
//	ParseAmount("-1 500")   -> -150000, nil
//	ParseAmount("12.345")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.Join(strings.Fields(s), "")
	if !amountGrammar.MatchString(s) {
		return 0, ErrInvalidAmount
	}
	s = strings.TrimPrefix(strings.Replace(s, ",", ".", 1), "+")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2)
	if !cents.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// FormatCents renders cents as "-1 234.50": thousands separated by a space,
// the fraction always two digits.
func FormatCents(cents int64) string {
	sign := ""
	v := uint64(cents)
	if cents < 0 {
		sign = "-"
		v = uint64(-(cents + 1)) + 1
	}

	major := strconv.FormatUint(v/100, 10)
	minor := v % 100

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range major {
		if i > 0 && (len(major)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	if minor < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatUint(minor, 10))
	return b.String()
}
