// Package money converts between major-unit decimal strings ("0.08") and
// integer amounts in the smallest denomination.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/eventpass/backend/internal/models"
)

// DefaultDecimals is the number of fractional digits of the base unit.
const DefaultDecimals = 9

var (
	ErrPrecision = errors.New("amount has more fractional digits than the currency allows")
	ErrNegative  = errors.New("amount must not be negative")
	ErrRange     = errors.New("amount out of range")
)

// Parse converts a major-unit decimal string into base units. It never rounds:
// a value that cannot be represented exactly is rejected.
func Parse(s string, decimals int32) (models.Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d, decimals)
}

// FromDecimal converts a major-unit decimal into base units.
func FromDecimal(d decimal.Decimal, decimals int32) (models.Amount, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrPrecision
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrRange
	}
	return models.Amount(scaled.IntPart()), nil
}

// Format renders base units as a major-unit decimal string without trailing zeros.
func Format(a models.Amount, decimals int32) string {
	return decimal.New(int64(a), -decimals).String()
}
