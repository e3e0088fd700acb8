package domain

import (
	"math"
	"math/bits"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is an amount in minor currency units.
type Money int64

// Times multiplies a non-negative amount by a non-negative quantity.
// Results that do not fit in Money are rejected, never wrapped.
func (m Money) Times(qty int64) (Money, error) {
	if m < 0 || qty < 0 {
		return 0, NewValidationError("amount out of range: %d x %d", m, qty)
	}
	hi, lo := bits.Mul64(uint64(m), uint64(qty))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, NewValidationError("amount out of range: %d x %d", m, qty)
	}
	return Money(lo), nil
}

// Plus adds two amounts, rejecting overflow.
func (m Money) Plus(o Money) (Money, error) {
	sum := m + o
	if (o > 0 && sum < m) || (o < 0 && sum > m) {
		return 0, NewValidationError("amount out of range: %d + %d", m, o)
	}
	return sum, nil
}

// Major converts the amount to major units using the currency's standard scale.
func (m Money) Major(unit currency.Unit) decimal.Decimal {
	scale, _ := currency.Standard.Rounding(unit)
	return decimal.New(int64(m), -int32(scale))
}

// Format renders the amount for humans, e.g. "USD 19.99".
func (m Money) Format(unit currency.Unit) string {
	scale, _ := currency.Standard.Rounding(unit)
	return unit.String() + " " + m.Major(unit).StringFixed(int32(scale))
}
