package kasa

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money represents a monetary value.
type Money struct {
	value decimal.Decimal // as major unit value
	cur   string
}

func M[T float64 | int | int64 | decimal.Decimal](value T, currency string) Money {
	return Money{value: newDecimal(value), cur: currency}
}

// TRY returns an amount in the valuation currency.
func TRY[T float64 | int | int64 | decimal.Decimal](value T) Money {
	return M(value, Currency)
}

// currency returns the money's currency
func (m Money) currency() money.Currency {
	// to get a never nil currency I need to call the Money constructor
	return *money.New(0, m.cur).Currency()
}

// String returns the amount rounded to the currency fraction with its symbol.
func (m Money) String() string {
	cur := m.currency()
	dec := m.value.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(dec.IntPart())
}

// Simple wrapper around money.Money

func (m Money) Decimal() decimal.Decimal          { return m.value }
func (m Money) Currency() string                  { return m.cur }
func (m Money) Equal(n Money) bool                { return m.value.Equal(n.value) && m.cur == n.cur }
func (m Money) IsZero() bool                      { return m.value.IsZero() }
func (m Money) IsPositive() bool                  { return m.value.IsPositive() }
func (m Money) IsNegative() bool                  { return m.value.IsNegative() }
func (m Money) LessThan(amount Money) bool        { return m.value.LessThan(amount.value) }
func (m Money) GreaterThan(n Money) bool          { return m.value.GreaterThan(n.value) }
func (m Money) Neg() Money                        { return Money{value: m.value.Neg(), cur: m.cur} }
func (m Money) Mul(n Quantity) Money              { return Money{value: m.value.Mul(n.value), cur: m.cur} }
func (m Money) Div(n Quantity) Money              { return Money{value: Div(m.value, n.value), cur: m.cur} }
func (m Money) DivMoney(n Money) decimal.Decimal  { return Div(m.value, n.value) }

// binary operators.
func (m Money) Add(n Money) Money { return Money{value: m.value.Add(n.value), cur: cur(m, n)} }
func (m Money) Sub(n Money) Money { return Money{value: m.value.Sub(n.value), cur: cur(m, n)} }

// makes the "" currency totally weak.
func cur(A, B Money) string {
	if A.cur == "" {
		return B.cur
	}
	if B.cur == "" {
		return A.cur
	}
	if A.cur != B.cur {
		panic("currency mismatch" + A.cur + "!=" + B.cur)
	}
	return A.cur
}

// SignedString returns the string representation of the money value with a sign.
// 0 is represented as a "-"
func (m Money) SignedString() string {
	if m.value.IsZero() {
		return "-"
	}
	if m.value.IsPositive() {
		return "+" + m.String()
	}
	return m.String()
}

// MarshalJSON writes the amount with all its digits, the currency is
// written by the enclosing object.
func (m Money) MarshalJSON() ([]byte, error) {
	return m.value.MarshalJSON()
}

// FormatTRY formats a price in the valuation currency.
func FormatTRY(d decimal.Decimal) string { return TRY(d).String() }
