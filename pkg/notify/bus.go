package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Bus is a Notifier that fans events out to subscribers. Publishing never
// blocks: events are dropped for subscribers whose buffer is full.
type Bus struct {
	lock sync.RWMutex
	subs []chan Event
	now  func() time.Time
}

func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe returns a channel of events and a function to unsubscribe,
// which closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.lock.Lock()
	defer b.lock.Unlock()

	ch := make(chan Event, buffer)
	b.subs = append(b.subs, ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.lock.Lock()
			defer b.lock.Unlock()
			for i, c := range b.subs {
				if c == ch {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					close(c)
					break
				}
			}
		})
	}
	return ch, unsub
}

func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = b.now()
	}
	b.lock.RLock()
	defer b.lock.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Bus) SignalReceived(instrument, signalID string) {
	b.Publish(Event{Kind: KindSignal, Level: LevelInfo, Instrument: instrument, Message: fmt.Sprintf("signal received: %s", signalID)})
}

func (b *Bus) OperationSucceeded(instrument, operation, details string) {
	b.Publish(Event{Kind: KindSuccess, Level: LevelSuccess, Instrument: instrument, Message: fmt.Sprintf("%s executed %s", operation, details)})
}

func (b *Bus) OperationFailed(instrument, reason string) {
	b.Publish(Event{Kind: KindFailure, Level: LevelError, Instrument: instrument, Message: fmt.Sprintf("operation failed: %s", reason)})
}

func (b *Bus) InsufficientBalance(instrument string, required, available decimal.Decimal) {
	b.Publish(Event{Kind: KindInsufficient, Level: LevelWarning, Instrument: instrument, Message: fmt.Sprintf("insufficient balance: %s < %s", available.StringFixed(2), required.StringFixed(2))})
}

func (b *Bus) Progress(instrument, message string) {
	b.Publish(Event{Kind: KindProgress, Level: LevelInfo, Instrument: instrument, Message: message})
}
