package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Exchange interface {
	// Constraints returns the trading rules of a symbol.
	Constraints(ctx context.Context, symbol string) (Constraints, error)
	// Balance returns the free balance of an asset.
	Balance(ctx context.Context, asset string) (decimal.Decimal, error)
	// MarketBuy buys quantity at market. The reference price is used when
	// the venue doesn't report fills.
	MarketBuy(ctx context.Context, symbol string, quantity, reference decimal.Decimal) (*Fill, error)
	// CreateBracket places a sell OCO: a take profit limit plus a stop loss.
	CreateBracket(ctx context.Context, symbol string, quantity, target, stop, stopLimit decimal.Decimal) (*Bracket, error)
}

// Constraints are the order size and price rules of a symbol.
type Constraints struct {
	MinQuantity   decimal.Decimal
	QuantityStep  decimal.Decimal
	MinOrderValue decimal.Decimal
	PriceStep     decimal.Decimal
}

// DefaultConstraints are used when a symbol's rules can't be retrieved.
var DefaultConstraints = Constraints{
	MinQuantity:   decimal.RequireFromString("0.001"),
	QuantityStep:  decimal.RequireFromString("0.001"),
	MinOrderValue: decimal.RequireFromString("10"),
	PriceStep:     decimal.RequireFromString("0.0001"),
}

func (c Constraints) String() string {
	return fmt.Sprintf("minQty=%s step=%s minNotional=%s tick=%s", c.MinQuantity, c.QuantityStep, c.MinOrderValue, c.PriceStep)
}

// Fill describes an executed market buy.
type Fill struct {
	OrderID  string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Fee      decimal.Decimal
}

// Value returns quantity times the average price.
func (f *Fill) Value() decimal.Decimal {
	return f.Quantity.Mul(f.Price)
}

type Bracket struct {
	OrderListID string
	OrderIDs    []string
}

var ErrNotFound = errors.New("exchange: not found")

// APIError is a coded rejection returned by the venue.
type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange: api error %d: %s", e.Code, e.Message)
}
