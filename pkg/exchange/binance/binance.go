package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/GinetonSantos/Metamorph/pkg/exchange"
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type binanceExchange struct {
	client *binance.Client
	log    zerolog.Logger
	debug  bool
}

var zero = decimal.Decimal{}

func New(log zerolog.Logger, apiKey, apiSecret string, debug bool) exchange.Exchange {
	cli := binance.NewClient(apiKey, apiSecret)
	if _, err := cli.NewSetServerTimeService().Do(context.Background()); err != nil {
		log.Warn().Err(err).Msg("binance: couldn't sync server time")
	}
	return &binanceExchange{
		client: cli,
		log:    log.With().Str("exchange", "binance").Logger(),
		debug:  debug,
	}
}

func (e *binanceExchange) Constraints(ctx context.Context, symbol string) (exchange.Constraints, error) {
	info, err := e.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return exchange.Constraints{}, fmt.Errorf("binance: couldn't get exchange info for %s: %w", symbol, wrap(err))
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		return parseFilters(s.Filters)
	}
	return exchange.Constraints{}, fmt.Errorf("binance: symbol %s: %w", symbol, exchange.ErrNotFound)
}

// parseFilters reads LOT_SIZE, PRICE_FILTER and NOTIONAL (or the legacy
// MIN_NOTIONAL) from the raw symbol filters.
func parseFilters(filters []map[string]interface{}) (exchange.Constraints, error) {
	var c exchange.Constraints
	var found int
	for _, f := range filters {
		var err error
		switch f["filterType"] {
		case string(binance.SymbolFilterTypeLotSize):
			if c.MinQuantity, err = filterValue(f, "minQty"); err != nil {
				return c, err
			}
			if c.QuantityStep, err = filterValue(f, "stepSize"); err != nil {
				return c, err
			}
			found++
		case string(binance.SymbolFilterTypePriceFilter):
			if c.PriceStep, err = filterValue(f, "tickSize"); err != nil {
				return c, err
			}
			found++
		case "NOTIONAL", "MIN_NOTIONAL":
			if !c.MinOrderValue.IsZero() {
				continue
			}
			if c.MinOrderValue, err = filterValue(f, "minNotional"); err != nil {
				return c, err
			}
			found++
		}
	}
	if found < 3 {
		return c, fmt.Errorf("binance: incomplete symbol filters: %w", exchange.ErrNotFound)
	}
	return c, nil
}

func filterValue(f map[string]interface{}, key string) (decimal.Decimal, error) {
	raw, ok := f[key].(string)
	if !ok {
		return zero, fmt.Errorf("binance: filter %v has no %s", f["filterType"], key)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return zero, fmt.Errorf("binance: couldn't parse %s %q: %w", key, raw, err)
	}
	return v, nil
}

func (e *binanceExchange) Balance(ctx context.Context, asset string) (decimal.Decimal, error) {
	acc, err := e.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return zero, fmt.Errorf("binance: couldn't get account: %w", wrap(err))
	}
	for _, b := range acc.Balances {
		if b.Asset == asset {
			balance, err := decimal.NewFromString(b.Free)
			if err != nil {
				return zero, fmt.Errorf("binance: couldn't parse balance %s: %w", b.Free, err)
			}
			return balance, nil
		}
	}
	return zero, fmt.Errorf("binance: balance for %s: %w", asset, exchange.ErrNotFound)
}

func (e *binanceExchange) MarketBuy(ctx context.Context, symbol string, quantity, reference decimal.Decimal) (*exchange.Fill, error) {
	order, err := e.client.NewCreateOrderService().Symbol(symbol).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		Quantity(quantity.String()).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: couldn't buy %s %s: %w", quantity, symbol, wrap(err))
	}
	if e.debug {
		js, _ := json.Marshal(order)
		e.log.Debug().RawJSON("order", js).Msg("buy_market_order")
	}

	fill := &exchange.Fill{
		OrderID:  strconv.FormatInt(order.OrderID, 10),
		Quantity: quantity,
		Price:    reference,
		Fee:      decimal.Zero,
	}
	if qty, err := decimal.NewFromString(order.ExecutedQuantity); err == nil && qty.IsPositive() {
		fill.Quantity = qty
	}
	for i, f := range order.Fills {
		if i == 0 {
			if price, err := decimal.NewFromString(f.Price); err == nil {
				fill.Price = price
			}
		}
		if fee, err := decimal.NewFromString(f.Commission); err == nil {
			fill.Fee = fill.Fee.Add(fee)
		}
	}
	return fill, nil
}

func (e *binanceExchange) CreateBracket(ctx context.Context, symbol string, quantity, target, stop, stopLimit decimal.Decimal) (*exchange.Bracket, error) {
	order, err := e.client.NewCreateOCOService().Symbol(symbol).
		Side(binance.SideTypeSell).
		StopLimitTimeInForce(binance.TimeInForceTypeGTC).
		Quantity(quantity.String()).
		Price(target.String()).
		StopPrice(stop.String()).
		StopLimitPrice(stopLimit.String()).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: couldn't create oco for %s: %w", symbol, wrap(err))
	}
	if e.debug {
		js, _ := json.Marshal(order)
		e.log.Debug().RawJSON("order", js).Msg("oco_order")
	}
	bracket := &exchange.Bracket{OrderListID: strconv.FormatInt(order.OrderListID, 10)}
	for _, o := range order.Orders {
		bracket.OrderIDs = append(bracket.OrderIDs, strconv.FormatInt(o.OrderID, 10))
	}
	return bracket, nil
}

// wrap converts go-binance API errors into exchange.APIError so callers can
// report the venue code without depending on the client library.
func wrap(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &exchange.APIError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return err
}
