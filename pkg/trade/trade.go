package trade

import (
	"time"

	"github.com/GinetonSantos/Metamorph/pkg/exchange"
	"github.com/GinetonSantos/Metamorph/pkg/signal"
	"github.com/GinetonSantos/Metamorph/pkg/sizing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type State string

const (
	StateReceived          State = "RECEIVED"
	StateMetadataFetched   State = "METADATA_FETCHED"
	StateBalanceChecked    State = "BALANCE_CHECKED"
	StateSized             State = "SIZED"
	StateBuySubmitted      State = "BUY_SUBMITTED"
	StateBuyFilled         State = "BUY_FILLED"
	StateBracketsSubmitted State = "BRACKETS_SUBMITTED"

	// Terminal states
	StateBalanceFailed               State = "BALANCE_FAILED"
	StateRejectedInsufficientBalance State = "REJECTED_INSUFFICIENT_BALANCE"
	StateInvalidConstraints          State = "INVALID_CONSTRAINTS"
	StateRejectedBelowMinQty         State = "REJECTED_BELOW_MIN_QTY"
	StateRejectedBelowMinNotional    State = "REJECTED_BELOW_MIN_NOTIONAL"
	StateBuyFailed                   State = "BUY_FAILED"
	StateCompleted                   State = "COMPLETED"
)

// Terminal reports whether no further step follows s.
func (s State) Terminal() bool {
	switch s {
	case StateBalanceFailed, StateRejectedInsufficientBalance, StateInvalidConstraints,
		StateRejectedBelowMinQty, StateRejectedBelowMinNotional, StateBuyFailed, StateCompleted:
		return true
	}
	return false
}

type Mode string

const (
	ModeLive Mode = "live"
	ModeDry  Mode = "dry"
)

// Outcome is the result of executing one signal.
type Outcome struct {
	ID         string
	SignalID   string
	Instrument string
	Mode       Mode
	StartTime  time.Time
	EndTime    time.Time
	State      State
	// Reason explains why a trade stopped before completing.
	Reason string

	Entry       decimal.Decimal
	Targets     []decimal.Decimal
	Constraints exchange.Constraints

	Balance         decimal.Decimal
	Allocation      sizing.Allocation
	InvestAmount    decimal.Decimal
	RequiredBalance decimal.Decimal
	Quantity        decimal.Decimal

	Buy       *exchange.Fill `json:",omitempty"`
	Plan      *sizing.Plan   `json:",omitempty"`
	StopPrice decimal.Decimal
	Brackets  []BracketResult `json:",omitempty"`
}

// BracketResult is the submission result of the bracket of one target.
type BracketResult struct {
	Target      decimal.Decimal
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	OrderListID string `json:",omitempty"`
	Error       string `json:",omitempty"`
}

func (b BracketResult) OK() bool {
	return b.Error == ""
}

func newOutcome(sig *signal.Signal, mode Mode, now time.Time) *Outcome {
	return &Outcome{
		ID:         uuid.NewString(),
		SignalID:   sig.ID,
		Instrument: sig.Instrument,
		Mode:       mode,
		StartTime:  now.UTC(),
		State:      StateReceived,
		Entry:      sig.Entry,
		Targets:    sig.Targets,
	}
}

// Succeeded returns how many brackets were created.
func (o *Outcome) Succeeded() int {
	var n int
	for _, b := range o.Brackets {
		if b.OK() {
			n++
		}
	}
	return n
}
