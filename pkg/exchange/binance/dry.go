package binance

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/GinetonSantos/Metamorph/pkg/exchange"
	"github.com/shopspring/decimal"
)

// DryBalance is the simulated free balance reported in dry mode.
var DryBalance = decimal.NewFromInt(1000)

type binanceExchangeDry struct {
	orders int64
}

// NewDry returns a simulated venue. It never contacts binance: constraints are
// the defaults, the balance is DryBalance and buys fill at the reference price.
func NewDry() exchange.Exchange {
	return &binanceExchangeDry{}
}

func (e *binanceExchangeDry) Constraints(ctx context.Context, symbol string) (exchange.Constraints, error) {
	return exchange.DefaultConstraints, nil
}

func (e *binanceExchangeDry) Balance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return DryBalance, nil
}

func (e *binanceExchangeDry) MarketBuy(ctx context.Context, symbol string, quantity, reference decimal.Decimal) (*exchange.Fill, error) {
	id := atomic.AddInt64(&e.orders, 1)
	return &exchange.Fill{
		OrderID:  fmt.Sprintf("dry_buy_%s_%d", symbol, id),
		Quantity: quantity,
		Price:    reference,
		Fee:      decimal.Zero,
	}, nil
}

func (e *binanceExchangeDry) CreateBracket(ctx context.Context, symbol string, quantity, target, stop, stopLimit decimal.Decimal) (*exchange.Bracket, error) {
	id := atomic.AddInt64(&e.orders, 1)
	return &exchange.Bracket{
		OrderListID: fmt.Sprintf("dry_oco_%d", id),
		OrderIDs: []string{
			fmt.Sprintf("greater_%s_%s", target, quantity),
			fmt.Sprintf("less_%s_%s", stop, quantity),
		},
	}, nil
}
