// Package core provides money parsing and handling utilities.
//
// Amounts are held as decimals with two-place currency semantics and travel
// over the wire as plain JSON numbers (100.00), never as floats.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a currency amount with two decimal places.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal, rounding it to cents.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d.Round(2)}
}

// MoneyFromCents builds a Money from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{Decimal: decimal.New(cents, -2)}
}

// ParseMoney converts free-form user input to a strictly positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to cents. Thousands separators are not accepted.
//
// Examples:
//
//	ParseMoney("12.34")  -> 12.34, nil
//	ParseMoney("12,34")  -> 12.34, nil
//	ParseMoney("12.345") -> 12.35, nil
//	ParseMoney("0.001")  -> ErrInvalidAmount (rounds to zero)
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := NewMoney(d)
	if !m.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// MustMoney parses s and panics on failure. Intended for fixtures.
func MustMoney(s string) Money {
	d := decimal.RequireFromString(s)
	return NewMoney(d)
}

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.Shift(2).Round(0).IntPart()
}

// String formats the amount with exactly two decimal places.
func (m Money) String() string {
	return m.StringFixed(2)
}

// Equal compares two amounts by value.
func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	return m.Decimal.UnmarshalJSON(b)
}
