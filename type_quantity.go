package kasa

import (
	"strings"

	"github.com/shopspring/decimal"
)

// divPrecision is the number of fractional digits kept by every division.
// shopspring's default (16) is too short for gram conversions of small rates.
const divPrecision = 28

// newDecimal is a convenient factory for decimal.Decimal
func newDecimal[T float64 | int | int64 | decimal.Decimal](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return v
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	default:
		panic("unsupported type")
	}
}

// Div divides a by b keeping divPrecision fractional digits.
func Div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, divPrecision)
}

// Round2 rounds half away from zero to 2 decimal places, for amounts.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Round4 rounds half away from zero to 4 decimal places, for quantities and rates.
func Round4(d decimal.Decimal) decimal.Decimal { return d.Round(4) }

// ParseDecimal reads a number as published by Turkish and international
// sites alike: "1234.5", "1.234,5" and "1234,5" are all accepted.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}

// Quantity is an amount of an asset (grams, or units of foreign currency).
type Quantity struct {
	value decimal.Decimal
}

func Q[T float64 | int | int64 | decimal.Decimal](value T) Quantity {
	return Quantity{value: newDecimal(value)}
}

// ParseQuantity parses a quantity using ParseDecimal rules.
func ParseQuantity(s string) (Quantity, error) {
	d, err := ParseDecimal(s)
	return Quantity{value: d}, err
}

func (t Quantity) Decimal() decimal.Decimal         { return t.value }
func (t Quantity) Equal(p Quantity) bool            { return t.value.Equal(p.value) }
func (t Quantity) LessThan(quantity Quantity) bool  { return t.value.LessThan(quantity.value) }
func (t Quantity) Add(p Quantity) Quantity          { return Quantity{value: t.value.Add(p.value)} }
func (t Quantity) Sub(p Quantity) Quantity          { return Quantity{value: t.value.Sub(p.value)} }
func (t Quantity) GreaterThan(p Quantity) bool      { return t.value.GreaterThan(p.value) }
func (t Quantity) IsNegative() bool                 { return t.value.IsNegative() }
func (t Quantity) IsPositive() bool                 { return t.value.IsPositive() }
func (t Quantity) IsZero() bool                     { return t.value.IsZero() }
func (q Quantity) String() string                   { return q.value.String() }

// MarshalJSON writes the quantity with all its digits.
func (t Quantity) MarshalJSON() ([]byte, error) {
	return t.value.MarshalJSON()
}
func (t *Quantity) UnmarshalJSON(decimalBytes []byte) error {
	return t.value.UnmarshalJSON(decimalBytes)
}
