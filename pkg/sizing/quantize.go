// Package sizing turns a balance and a signal into exchange-legal order sizes.
package sizing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidStep is returned when a quantity or price step is not positive.
var ErrInvalidStep = errors.New("sizing: invalid step")

// QuantizeQuantity rounds raw down to a multiple of step. Negative input
// quantizes to zero.
func QuantizeQuantity(raw, step decimal.Decimal) (decimal.Decimal, error) {
	if !step.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: quantity step %s", ErrInvalidStep, step)
	}
	if !raw.IsPositive() {
		return decimal.Zero, nil
	}
	return raw.Sub(raw.Mod(step)), nil
}

// QuantizePrice rounds raw to the number of decimals implied by step, or to
// a whole number when step is 1 or more.
func QuantizePrice(raw, step decimal.Decimal) (decimal.Decimal, error) {
	if !step.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: price step %s", ErrInvalidStep, step)
	}
	return raw.Round(PricePrecision(step)), nil
}

// PricePrecision is round(-log10(step)), floored at zero.
func PricePrecision(step decimal.Decimal) int32 {
	if step.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return 0
	}
	return int32(math.Round(-math.Log10(step.InexactFloat64())))
}
