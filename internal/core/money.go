// Package core holds the expense record model, change deltas and the
// cost parsing used by the form layer.
package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseCost converts a user-entered cost to cents.
//
// Dot and comma are both accepted as decimal separator. Digits beyond the
// second decimal are rounded half-up. Signs, exponents and empty input are
// rejected with ErrInvalidCost; range checks are left to Money.Validate.
//
//	ParseCost("12")     -> 1200
//	ParseCost("12,5")   -> 1250
//	ParseCost("12.345") -> 1235
func ParseCost(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return Money{}, ErrInvalidCost
	}

	whole, frac, _ := strings.Cut(s, ".")
	if strings.Contains(frac, ".") || !allDigits(whole) || !allDigits(frac) {
		return Money{}, ErrInvalidCost
	}
	if whole == "" {
		if frac == "" {
			return Money{}, ErrInvalidCost
		}
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > (1<<63-1)/100-1 {
		return Money{}, ErrInvalidCost
	}

	var cents int64
	for i := 0; i < len(frac) && i < 2; i++ {
		d := int64(frac[i] - '0')
		if i == 0 {
			d *= 10
		}
		cents += d
	}
	if len(frac) > 2 && frac[2] >= '5' {
		cents++
	}

	return Money{Cents: units*100 + cents}, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Units returns the cost in whole currency units for display and charting.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// FromUnits converts a float amount (e.g. from a JSON body) to cents, rounding
// to the nearest cent.
func FromUnits(v float64) Money {
	return Money{Cents: int64(math.Round(v * 100))}
}

// String formats the amount as "€12,34".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	frac := strconv.FormatInt(cents%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	return sign + "€" + strconv.FormatInt(cents/100, 10) + "," + frac
}
