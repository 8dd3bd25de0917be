// Package money provides currency-safe rounding for order math. All monetary
// derivations (subtotal, tax, shipping, discount, total) pass through Round2
// at their boundary so accumulated floating error never exceeds one cent.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	apperrors "github.com/oakmart/checkout-engine/pkg/errors"
)

// Round2 rounds x to 2 decimal places, half away from zero.
// Decimal arithmetic avoids the float64 artifacts of naive multiply-and-round
// (e.g. 1.005 rounding down).
func Round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// NonNegative validates that x is a finite, non-negative amount. The name is
// used in the error message ("unit_price", "quantity", ...).
func NonNegative(name string, x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return apperrors.InvalidAmount(fmt.Sprintf("%s must be a finite number", name))
	}
	if x < 0 {
		return apperrors.InvalidAmount(fmt.Sprintf("%s must not be negative", name))
	}
	return nil
}

// Min returns the smaller of two amounts.
func Min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
