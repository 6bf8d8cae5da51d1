package engine

import (
	"fmt"
	"math"

	"github.com/eventpass/backend/internal/models"
)

// sumAmount returns a+b and whether the sum fits in an int64.
func sumAmount(a, b models.Amount) (models.Amount, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// addAmount panics on int64 overflow. Callers check with sumAmount before
// committing, so a panic here means a journaled event was never validated.
func addAmount(a, b models.Amount) models.Amount {
	sum, ok := sumAmount(a, b)
	if !ok {
		panic(fmt.Sprintf("engine: amount overflow %d + %d", a, b))
	}
	return sum
}

// maxResalePrice returns floor(price * (100+MaxMarkupPercent) / 100) without
// an intermediate product that could overflow.
func maxResalePrice(price models.Amount) models.Amount {
	const num, den = 100 + MaxMarkupPercent, 100
	q, r := price/den, price%den
	if q > math.MaxInt64/num {
		panic(fmt.Sprintf("engine: resale cap overflow for price %d", price))
	}
	return q*num + r*num/den
}
