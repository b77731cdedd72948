// Package notify delivers human readable trade progress to observers such as
// the log and the telegram control chat.
package notify

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Notifier interface {
	SignalReceived(instrument, signalID string)
	OperationSucceeded(instrument, operation, details string)
	OperationFailed(instrument, reason string)
	InsufficientBalance(instrument string, required, available decimal.Decimal)
	Progress(instrument, message string)
}

type Kind string

const (
	KindSignal       Kind = "signal"
	KindSuccess      Kind = "success"
	KindFailure      Kind = "failure"
	KindInsufficient Kind = "insufficient_balance"
	KindProgress     Kind = "progress"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Event struct {
	Time       time.Time
	Kind       Kind
	Level      Level
	Instrument string
	Message    string
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s: %s", e.Level.emoji(), e.Instrument, e.Message)
}

func (l Level) emoji() string {
	switch l {
	case LevelSuccess:
		return "✅"
	case LevelWarning:
		return "⚠️"
	case LevelError:
		return "❌"
	default:
		return "ℹ️"
	}
}

// Nop discards every notification.
type Nop struct{}

func (Nop) SignalReceived(string, string)                                {}
func (Nop) OperationSucceeded(string, string, string)                    {}
func (Nop) OperationFailed(string, string)                               {}
func (Nop) InsufficientBalance(string, decimal.Decimal, decimal.Decimal) {}
func (Nop) Progress(string, string)                                      {}
