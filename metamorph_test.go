package metamorph

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GinetonSantos/Metamorph/pkg/exchange/binance"
	"github.com/GinetonSantos/Metamorph/pkg/exchange/metadata"
	"github.com/GinetonSantos/Metamorph/pkg/ledger"
	"github.com/GinetonSantos/Metamorph/pkg/notify"
	"github.com/GinetonSantos/Metamorph/pkg/signal"
	"github.com/GinetonSantos/Metamorph/pkg/trade"
	"github.com/GinetonSantos/Metamorph/pkg/trade/inmem"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const btcSignal = `🚀 NOVO SINAL 🚀
#BTCUSDT
Compra: 50000
Alvo 1: 51000
Alvo 2: 52000
Alvo 3: 53000
StopLoss: 49000
ID: #abc123`

func testBot(t *testing.T) (*Bot, *inmem.Store, <-chan notify.Event) {
	t.Helper()
	p, err := signal.NewParser("USDT")
	require.NoError(t, err)
	ldg, err := ledger.New(filepath.Join(t.TempDir(), "ledger.csv"))
	require.NoError(t, err)
	store := &inmem.Store{}
	bus := notify.NewBus()
	events, unsub := bus.Subscribe(100)
	t.Cleanup(unsub)

	ex := binance.NewDry()
	executor := trade.NewExecutor(zerolog.Nop(), ex, metadata.New(ex, zerolog.Nop(), true), bus, "USDT",
		trade.WithDry(), trade.WithLedger(ldg), trade.WithStore(store))
	return newBot(zerolog.Nop(), p, executor, bus, ldg, store, true), store, events
}

func drain(ch <-chan notify.Event) []notify.Event {
	var events []notify.Event
	for {
		select {
		case e := <-ch:
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestHandleSignal(t *testing.T) {
	b, store, events := testBot(t)

	b.handle(btcSignal)
	b.wg.Wait()

	outcomes, err := store.List(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, trade.StateCompleted, outcomes[0].State)
	assert.Equal(t, "#abc123", outcomes[0].SignalID)
	assert.Equal(t, 3, outcomes[0].Succeeded())

	got := drain(events)
	require.NotEmpty(t, got)
	assert.Equal(t, notify.KindSignal, got[0].Kind)
	assert.Equal(t, "no trades running", b.status())
}

func TestHandleIgnored(t *testing.T) {
	b, store, events := testBot(t)

	b.handle("hello world")
	b.handle("NOVO SINAL FREE #BTCUSDT sem dados")
	b.wg.Wait()

	outcomes, err := store.List(time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Empty(t, drain(events))
}

func TestHandleMalformed(t *testing.T) {
	b, store, events := testBot(t)

	b.handle(strings.Replace(btcSignal, "StopLoss: 49000", "StopLoss: 51000", 1))
	b.wg.Wait()

	outcomes, err := store.List(time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, notify.KindFailure, got[0].Kind)
}

func TestHandleRunningInstrument(t *testing.T) {
	b, store, events := testBot(t)
	b.trades["BTCUSDT"] = running{signalID: "#old", start: time.Now()}

	b.handle(btcSignal)
	b.wg.Wait()

	outcomes, err := store.List(time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, notify.KindFailure, got[0].Kind)
	assert.Contains(t, got[0].Message, "#old")
	assert.Contains(t, b.status(), "BTCUSDT #old")
}

func TestCommands(t *testing.T) {
	b, _, _ := testBot(t)
	b.handle(btcSignal)
	b.wg.Wait()

	now := time.Now()
	msg, err := b.summary("", now)
	require.NoError(t, err)
	assert.Contains(t, msg, now.Format("2006-01"))
	assert.Contains(t, msg, "bought: 500.00")
	assert.Contains(t, msg, "executed: 1")

	msg, err = b.summary("2001-01", now)
	require.NoError(t, err)
	assert.Contains(t, msg, "executed: 0")

	_, err = b.summary("january", now)
	assert.Error(t, err)

	msg, err = b.history(now.Add(time.Minute))
	require.NoError(t, err)
	assert.Contains(t, msg, "BTCUSDT COMPLETED 3/3 OCO")
}

func TestDeleteCommand(t *testing.T) {
	b, store, _ := testBot(t)
	b.handle(btcSignal)
	b.handle(strings.Replace(btcSignal, "#BTCUSDT", "#ETHUSDT", 1))
	b.wg.Wait()

	now := time.Now().Add(time.Minute)
	outcomes, err := store.List(time.Time{}, now)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	target := outcomes[0]

	_, err = b.delete("", now)
	assert.Error(t, err)
	_, err = b.delete("zzzzzzzz", now)
	assert.Error(t, err)

	msg, err := b.delete(target.ID[:8], now)
	require.NoError(t, err)
	assert.Contains(t, msg, target.Instrument)

	outcomes, err = store.List(time.Time{}, now)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.NotEqual(t, target.ID, outcomes[0].ID)

	msg, err = b.history(now)
	require.NoError(t, err)
	assert.NotContains(t, msg, shortID(target.ID))
}
