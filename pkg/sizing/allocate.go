package sizing

import "github.com/shopspring/decimal"

type Tier string

const (
	TierSmall  Tier = "SMALL"
	TierMedium Tier = "MEDIUM"
	TierLarge  Tier = "LARGE"
)

var (
	smallLimit  = decimal.NewFromInt(50)
	mediumLimit = decimal.NewFromInt(200)

	smallFraction  = decimal.RequireFromString("0.85")
	mediumFraction = decimal.RequireFromString("0.65")
	largeFraction  = decimal.RequireFromString("0.50")
)

// Allocation is the share of the balance committed to a single trade.
type Allocation struct {
	Fraction decimal.Decimal
	Tier     Tier
}

// Allocate maps a free balance to its tier. Bounds are inclusive on the upper
// side: 50 is SMALL and 200 is MEDIUM.
func Allocate(balance decimal.Decimal) Allocation {
	switch {
	case balance.LessThanOrEqual(smallLimit):
		return Allocation{Fraction: smallFraction, Tier: TierSmall}
	case balance.LessThanOrEqual(mediumLimit):
		return Allocation{Fraction: mediumFraction, Tier: TierMedium}
	default:
		return Allocation{Fraction: largeFraction, Tier: TierLarge}
	}
}

// Amount is the quote amount to invest out of balance.
func (a Allocation) Amount(balance decimal.Decimal) decimal.Decimal {
	return balance.Mul(a.Fraction)
}

// RequiredBalance is the smallest balance whose investable amount reaches
// minOrderValue at this allocation's fraction.
func (a Allocation) RequiredBalance(minOrderValue decimal.Decimal) decimal.Decimal {
	return minOrderValue.Div(a.Fraction)
}
