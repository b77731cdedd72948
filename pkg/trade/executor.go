package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GinetonSantos/Metamorph/pkg/exchange"
	"github.com/GinetonSantos/Metamorph/pkg/exchange/metadata"
	"github.com/GinetonSantos/Metamorph/pkg/metrics"
	"github.com/GinetonSantos/Metamorph/pkg/notify"
	"github.com/GinetonSantos/Metamorph/pkg/signal"
	"github.com/GinetonSantos/Metamorph/pkg/sizing"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Metadata returns the constraints of a symbol and never fails.
type Metadata interface {
	Constraints(ctx context.Context, symbol string) exchange.Constraints
}

// Ledger records buys and failed operations.
type Ledger interface {
	RecordBuy(pair string, quantity, price, fee decimal.Decimal, signalID string) error
	RecordFailed(pair, signalID, reason string) error
}

// Executor turns a signal into a market buy followed by one bracket order per
// selected target. It keeps no state between trades and may run concurrently.
type Executor struct {
	log      zerolog.Logger
	exchange exchange.Exchange
	metadata Metadata
	notifier notify.Notifier
	currency string
	mode     Mode
	ledger   Ledger
	store    Store
	retries  int
	wait     time.Duration
	now      func() time.Time
}

type Option func(*Executor)

func WithDry() Option {
	return func(e *Executor) { e.mode = ModeDry }
}

func WithLedger(l Ledger) Option {
	return func(e *Executor) { e.ledger = l }
}

func WithStore(s Store) Option {
	return func(e *Executor) { e.store = s }
}

// WithRetries sets how many times a balance lookup is retried after a
// network timeout.
func WithRetries(n int, wait time.Duration) Option {
	return func(e *Executor) {
		e.retries = n
		e.wait = wait
	}
}

func NewExecutor(log zerolog.Logger, ex exchange.Exchange, md Metadata, notifier notify.Notifier, currency string, opts ...Option) *Executor {
	e := &Executor{
		log:      log,
		exchange: ex,
		metadata: md,
		notifier: notifier,
		currency: currency,
		mode:     ModeLive,
		retries:  2,
		wait:     time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the full lifecycle of a trade. Failures are reported through
// the returned outcome, never as an error.
func (e *Executor) Execute(ctx context.Context, sig *signal.Signal) *Outcome {
	o := newOutcome(sig, e.mode, e.now())
	log := e.log.With().Str("symbol", sig.Instrument).Str("signal", sig.ID).Str("trade", o.ID).Logger()
	defer e.finish(log, o)
	symbol := sig.Instrument

	c := e.metadata.Constraints(ctx, symbol)
	o.Constraints = c
	o.State = StateMetadataFetched
	log.Debug().Stringer("constraints", c).Msg("trade: constraints fetched")
	e.notifier.Progress(symbol, fmt.Sprintf("pair info: minQty=%s minNotional=%s", c.MinQuantity, c.MinOrderValue))

	balance, err := e.balance(ctx, log)
	if err != nil {
		e.notifier.OperationFailed(symbol, fmt.Sprintf("couldn't get %s balance: %v", e.currency, err))
		return o.stop(StateBalanceFailed, err.Error())
	}
	alloc := sizing.Allocate(balance)
	o.Balance = balance
	o.Allocation = alloc
	o.InvestAmount = alloc.Amount(balance)
	o.State = StateBalanceChecked
	e.notifier.Progress(symbol, fmt.Sprintf("%s account: balance %s %s, investing %s%% = %s %s",
		alloc.Tier, balance.StringFixed(2), e.currency, alloc.Fraction.Shift(2).StringFixed(0), o.InvestAmount.StringFixed(2), e.currency))

	if o.InvestAmount.LessThan(c.MinOrderValue) {
		o.RequiredBalance = alloc.RequiredBalance(c.MinOrderValue)
		e.notifier.InsufficientBalance(symbol, c.MinOrderValue, o.InvestAmount)
		e.notifier.Progress(symbol, fmt.Sprintf("minimum recommended balance for a %s account: %s %s, waiting for new signals",
			alloc.Tier, o.RequiredBalance.StringFixed(2), e.currency))
		return o.stop(StateRejectedInsufficientBalance, fmt.Sprintf("investable %s below minimum order value %s, balance of %s required",
			o.InvestAmount.StringFixed(2), c.MinOrderValue, o.RequiredBalance.StringFixed(2)))
	}

	rawQty := o.InvestAmount.Div(sig.Entry)
	qty, err := sizing.QuantizeQuantity(rawQty, c.QuantityStep)
	if err != nil {
		e.notifier.OperationFailed(symbol, err.Error())
		return o.stop(StateInvalidConstraints, err.Error())
	}
	o.Quantity = qty
	o.State = StateSized

	if qty.LessThan(c.MinQuantity) {
		reason := fmt.Sprintf("quantity %s below minimum %s", qty, c.MinQuantity)
		e.notifier.OperationFailed(symbol, reason)
		return o.stop(StateRejectedBelowMinQty, reason)
	}
	notional := qty.Mul(sig.Entry)
	if notional.LessThan(c.MinOrderValue) {
		reason := fmt.Sprintf("notional value %s below minimum %s", notional, c.MinOrderValue)
		e.notifier.OperationFailed(symbol, reason)
		return o.stop(StateRejectedBelowMinNotional, reason)
	}
	e.notifier.Progress(symbol, fmt.Sprintf("validations passed: quantity %s -> %s, notional %s %s", rawQty.Round(8), qty, notional, e.currency))

	o.State = StateBuySubmitted
	fill, err := e.exchange.MarketBuy(ctx, symbol, qty, sig.Entry)
	if err != nil {
		reason := Describe(err)
		log.Error().Err(err).Msg("trade: buy failed")
		e.record(log, func(l Ledger) error { return l.RecordFailed(symbol, sig.ID, "buy error: "+reason) })
		e.notifier.OperationFailed(symbol, "buy error: "+reason)
		return o.stop(StateBuyFailed, reason)
	}
	o.Buy = fill
	o.State = StateBuyFilled
	metrics.InvestedTotal.WithLabelValues(symbol).Add(fill.Value().InexactFloat64())
	e.record(log, func(l Ledger) error { return l.RecordBuy(symbol, fill.Quantity, fill.Price, fill.Fee, sig.ID) })
	e.notifier.OperationSucceeded(symbol, "BUY", fmt.Sprintf("order %s qty %s price %s id %s", fill.OrderID, fill.Quantity, fill.Price, sig.ID))

	plan, err := sizing.Split(fill.Quantity, sig.Targets, c)
	if err != nil {
		return e.unprotected(o, err)
	}
	o.Plan = plan
	stop, err := sizing.QuantizePrice(sig.Stop, c.PriceStep)
	if err != nil {
		return e.unprotected(o, err)
	}
	o.StopPrice = stop
	e.notifier.Progress(symbol, fmt.Sprintf("strategy: %s, %d active targets, %s per target", plan.Label, len(plan.Targets), plan.Quantity))

	o.State = StateBracketsSubmitted
	for i, target := range plan.Targets {
		res := e.bracket(ctx, symbol, target, plan.Quantity, stop, c.PriceStep)
		o.Brackets = append(o.Brackets, res)
		if res.OK() {
			metrics.BracketsTotal.WithLabelValues(symbol, "ok").Inc()
			e.notifier.OperationSucceeded(symbol, fmt.Sprintf("OCO target %d", i+1), fmt.Sprintf("list %s take profit %s stop %s qty %s", res.OrderListID, res.Price, stop, res.Quantity))
			continue
		}
		metrics.BracketsTotal.WithLabelValues(symbol, "error").Inc()
		log.Error().Str("error", res.Error).Int("target", i+1).Msg("trade: bracket failed")
		e.notifier.OperationFailed(symbol, fmt.Sprintf("OCO target %d: %s", i+1, res.Error))
	}

	o.State = StateCompleted
	e.notifier.Progress(symbol, fmt.Sprintf("summary: %d OCO orders created of %d targets", o.Succeeded(), len(plan.Targets)))
	if o.Succeeded() == 0 {
		e.notifier.OperationFailed(symbol, fmt.Sprintf("%s has been bought but no exit order was created, it must be sold manually", symbol))
	}
	return o
}

func (e *Executor) bracket(ctx context.Context, symbol string, target, qty, stop, priceStep decimal.Decimal) BracketResult {
	res := BracketResult{Target: target, Quantity: qty}
	price, err := sizing.QuantizePrice(target, priceStep)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Price = price
	// The stop limit price is the trigger price itself
	b, err := e.exchange.CreateBracket(ctx, symbol, qty, price, stop, stop)
	if err != nil {
		res.Error = Describe(err)
		return res
	}
	res.OrderListID = b.OrderListID
	return res
}

// unprotected ends a trade whose buy filled but whose exits can't be
// computed.
func (e *Executor) unprotected(o *Outcome, err error) *Outcome {
	e.notifier.OperationFailed(o.Instrument, fmt.Sprintf("%s has been bought, but order creation failed. You must sell it manually: %v", o.Instrument, err))
	return o.stop(StateInvalidConstraints, err.Error())
}

func (e *Executor) balance(ctx context.Context, log zerolog.Logger) (decimal.Decimal, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.wait
	var nerr int
	for {
		balance, err := e.exchange.Balance(ctx, e.currency)
		if err == nil {
			return balance, nil
		}
		if !metadata.Transient(err) || nerr >= e.retries {
			return decimal.Zero, fmt.Errorf("trade: couldn't get balance: %w", err)
		}
		nerr++
		log.Warn().Err(err).Int("attempt", nerr).Msg("trade: couldn't get balance, retrying...")
		select {
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		case <-time.After(b.NextBackOff()):
		}
	}
}

func (e *Executor) record(log zerolog.Logger, fn func(Ledger) error) {
	if e.ledger == nil {
		return
	}
	if err := fn(e.ledger); err != nil {
		log.Error().Err(err).Msg("trade: couldn't write ledger")
	}
}

func (e *Executor) finish(log zerolog.Logger, o *Outcome) {
	o.EndTime = e.now().UTC()
	metrics.TradesTotal.WithLabelValues(o.Instrument, string(o.State)).Inc()
	ev := log.Info()
	if o.State == StateBuyFailed || o.State == StateBalanceFailed || o.State == StateInvalidConstraints {
		ev = log.Error()
	}
	ev.Str("state", string(o.State)).Str("reason", o.Reason).Int("brackets", o.Succeeded()).Msg("trade: finished")
	if e.store == nil {
		return
	}
	if err := e.store.Update(o); err != nil {
		log.Error().Err(err).Msg("trade: couldn't store outcome")
	}
}

func (o *Outcome) stop(state State, reason string) *Outcome {
	o.State = state
	o.Reason = reason
	return o
}

// Describe formats err for operators, keeping the venue code of API errors.
func Describe(err error) string {
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s (code %d)", apiErr.Message, apiErr.Code)
	}
	return err.Error()
}
