package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire and storage layout of event dates.
const DateLayout = "2006-01-02"

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// Sanitize trims s and truncates it to limit runes.
func Sanitize(s string, limit int) string {
	return Truncate(strings.TrimSpace(s), limit)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// RoundHalfUp rounds like a spreadsheet: halves go toward positive infinity.
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// NormalizeEventDate returns a YYYY-MM-DD date or nil when raw is not one.
func NormalizeEventDate(raw string) *string {
	s := Sanitize(raw, 20)
	if len(s) != len(DateLayout) {
		return nil
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return nil
	}
	return &s
}

// EarlierDate returns the sooner of two optional dates.
func EarlierDate(current, incoming *string) *string {
	switch {
	case current == nil:
		return incoming
	case incoming == nil:
		return current
	case *incoming < *current:
		return incoming
	default:
		return current
	}
}

// NormalizeEnergy rounds to the nearest level and clamps to 1..5. Nil means 3.
func NormalizeEnergy(v *float64) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return DefaultEnergyLevel
	}
	return Clamp(RoundHalfUp(*v), MinEnergyLevel, MaxEnergyLevel)
}
