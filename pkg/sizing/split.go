package sizing

import (
	"errors"
	"fmt"

	"github.com/GinetonSantos/Metamorph/pkg/exchange"
	"github.com/shopspring/decimal"
)

var ErrNoTargets = errors.New("sizing: no targets")

const (
	Label3Targets = "3 targets"
	Label2Targets = "2 targets (largest dropped)"
	Label1Target  = "1 target (concentrated)"
)

// Plan is how a filled quantity is spread over take profit targets.
type Plan struct {
	// Quantity is the size of each bracket.
	Quantity decimal.Decimal
	// Targets is a prefix of the signal targets, one bracket each.
	Targets []decimal.Decimal
	Label   string
}

// Split decides how many targets the quantity can be spread over. Three
// equal parts are tried first, then two, and every part must be worth at
// least the minimum order value at the first target. When neither fits the
// whole quantity goes to the first target.
//
// Only 3, 2 and 1 parts are considered: with more than three targets the
// rest are never used.
func Split(quantity decimal.Decimal, targets []decimal.Decimal, c exchange.Constraints) (*Plan, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	nearest := targets[0]
	for _, k := range []int{3, 2} {
		if len(targets) < k {
			continue
		}
		part, err := QuantizeQuantity(quantity.Div(decimal.NewFromInt(int64(k))), c.QuantityStep)
		if err != nil {
			return nil, fmt.Errorf("sizing: couldn't split in %d: %w", k, err)
		}
		if part.Mul(nearest).GreaterThanOrEqual(c.MinOrderValue) {
			label := Label3Targets
			if k == 2 {
				label = Label2Targets
			}
			return &Plan{
				Quantity: part,
				Targets:  append([]decimal.Decimal(nil), targets[:k]...),
				Label:    label,
			}, nil
		}
	}
	return &Plan{
		Quantity: quantity,
		Targets:  []decimal.Decimal{nearest},
		Label:    Label1Target,
	}, nil
}
