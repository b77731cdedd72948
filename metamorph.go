package metamorph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GinetonSantos/Metamorph/pkg/exchange"
	"github.com/GinetonSantos/Metamorph/pkg/exchange/binance"
	"github.com/GinetonSantos/Metamorph/pkg/exchange/metadata"
	"github.com/GinetonSantos/Metamorph/pkg/ledger"
	"github.com/GinetonSantos/Metamorph/pkg/metrics"
	"github.com/GinetonSantos/Metamorph/pkg/mtproto"
	"github.com/GinetonSantos/Metamorph/pkg/notify"
	"github.com/GinetonSantos/Metamorph/pkg/signal"
	"github.com/GinetonSantos/Metamorph/pkg/signal/parser"
	"github.com/GinetonSantos/Metamorph/pkg/telegram"
	"github.com/GinetonSantos/Metamorph/pkg/trade"
	"github.com/GinetonSantos/Metamorph/pkg/trade/bolt"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var version = "v261018a"

type Config struct {
	DBPath     string
	LedgerPath string
	APIKey     string
	APISecret  string
	Currency   string
	Parser     string
	Dry        bool
	Debug      bool

	// Signal feed read with a user account
	TelegramAPIID   int
	TelegramAPIHash string
	TelegramPhone   string
	TelegramSession string
	SignalChat      int64
	Code            func(context.Context) (string, error)

	// Optional control bot
	ControlToken string
	ControlChat  int64

	MetricsAddr string
}

type listener interface {
	Listen(ctx context.Context) error
}

type running struct {
	signalID string
	start    time.Time
}

type Bot struct {
	log      zerolog.Logger
	parser   signal.Parser
	executor *trade.Executor
	bus      *notify.Bus
	ledger   *ledger.Ledger
	store    trade.Store
	listener listener
	control  *telegram.Bot
	metrics  *http.Server
	dry      bool
	closers  []func() error

	ctx    context.Context
	cancel context.CancelFunc
	lock   sync.Mutex
	trades map[string]running
	wg     sync.WaitGroup
}

func NewBot(cfg *Config, log zerolog.Logger) (*Bot, error) {
	var ex exchange.Exchange
	if cfg.Dry {
		ex = binance.NewDry()
	} else {
		ex = binance.New(log, cfg.APIKey, cfg.APISecret, cfg.Debug)
	}
	p, err := parser.NewParser(cfg.Parser, cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("metamorph: couldn't create parser %q: %w", cfg.Parser, err)
	}
	store, err := bolt.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("metamorph: couldn't create db: %w", err)
	}
	ldg, err := ledger.New(cfg.LedgerPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("metamorph: couldn't create ledger: %w", err)
	}

	bus := notify.NewBus()
	opts := []trade.Option{trade.WithLedger(ldg), trade.WithStore(store)}
	if cfg.Dry {
		opts = append(opts, trade.WithDry())
	}
	md := metadata.New(ex, log, cfg.Dry)
	executor := trade.NewExecutor(log, ex, md, bus, cfg.Currency, opts...)

	b := newBot(log, p, executor, bus, ldg, store, cfg.Dry)
	b.closers = append(b.closers, store.Close)
	if cfg.MetricsAddr != "" {
		b.metrics = metrics.Server(cfg.MetricsAddr)
	}

	if cfg.ControlToken != "" {
		control, err := telegram.New(cfg.ControlToken, cfg.ControlChat, log)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("metamorph: couldn't create telegram bot: %w", err)
		}
		b.control = control
		b.commands()
	}

	switch {
	case cfg.TelegramAPIID != 0:
		b.listener = mtproto.New(cfg.TelegramAPIID, cfg.TelegramAPIHash, cfg.TelegramPhone, cfg.TelegramSession, cfg.SignalChat, log, b.handle, cfg.Code)
	case b.control != nil:
		b.control.HandleChat(cfg.SignalChat, true, b.handle)
	default:
		store.Close()
		return nil, errors.New("metamorph: no signal source configured")
	}
	return b, nil
}

func newBot(log zerolog.Logger, p signal.Parser, executor *trade.Executor, bus *notify.Bus, ldg *ledger.Ledger, store trade.Store, dry bool) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		log:      log,
		parser:   p,
		executor: executor,
		bus:      bus,
		ledger:   ldg,
		store:    store,
		dry:      dry,
		ctx:      ctx,
		cancel:   cancel,
		trades:   make(map[string]running),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.close()
	g, gctx := errgroup.WithContext(b.ctx)

	logEvents, unsubLog := b.bus.Subscribe(100)
	defer unsubLog()
	g.Go(func() error {
		notify.Log(gctx, b.log, logEvents)
		return nil
	})

	if b.control != nil {
		controlEvents, unsubControl := b.bus.Subscribe(100)
		defer unsubControl()
		g.Go(func() error {
			b.control.Notify(gctx, controlEvents)
			return nil
		})
		g.Go(func() error {
			return b.control.Run(gctx)
		})
	}
	if b.metrics != nil {
		g.Go(func() error {
			if err := b.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metamorph: metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return b.metrics.Shutdown(shutdownCtx)
		})
	}
	if b.listener != nil {
		g.Go(func() error {
			return b.listener.Listen(gctx)
		})
	}

	b.bus.Progress("bot", fmt.Sprintf("🤖 metamorph bot running - version: %s - dry mode: %t", version, b.dry))
	err := g.Wait()
	b.wg.Wait()
	b.log.Info().Msg("🛑 metamorph bot stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Bot) close() {
	for _, c := range b.closers {
		if err := c(); err != nil {
			b.log.Error().Err(err).Msg("metamorph: couldn't close")
		}
	}
}

// handle processes one feed message. Trades run in their own goroutine so
// the feed never waits for an execution to finish.
func (b *Bot) handle(text string) {
	sig, err := b.parser.Parse(text)
	var malformed *signal.MalformedError
	switch {
	case errors.Is(err, signal.ErrIgnored):
		metrics.SignalsTotal.WithLabelValues("ignored").Inc()
		b.log.Debug().Err(err).Str("text", text).Msg("message ignored")
		return
	case errors.As(err, &malformed):
		metrics.SignalsTotal.WithLabelValues("malformed").Inc()
		b.log.Error().Err(err).Str("field", malformed.Field).Str("text", text).Msg("metamorph: couldn't parse signal")
		b.bus.OperationFailed("signal", fmt.Sprintf("couldn't process signal: %v", err))
		return
	case err != nil:
		metrics.SignalsTotal.WithLabelValues("error").Inc()
		b.log.Error().Err(err).Msg("metamorph: couldn't parse signal")
		return
	}

	b.log.Info().Str("symbol", sig.Instrument).Str("signal", sig.ID).Msg("signal detected")
	b.lock.Lock()
	if r, ok := b.trades[sig.Instrument]; ok {
		b.lock.Unlock()
		metrics.SignalsTotal.WithLabelValues("duplicate").Inc()
		b.bus.OperationFailed(sig.Instrument, fmt.Sprintf("there is already a running trade for %s (%s)", sig.Instrument, r.signalID))
		return
	}
	b.trades[sig.Instrument] = running{signalID: sig.ID, start: time.Now()}
	b.wg.Add(1)
	b.lock.Unlock()

	metrics.SignalsTotal.WithLabelValues("accepted").Inc()
	b.bus.SignalReceived(sig.Instrument, sig.ID)
	go func() {
		defer b.wg.Done()
		defer func() {
			b.lock.Lock()
			delete(b.trades, sig.Instrument)
			b.lock.Unlock()
		}()
		b.executor.Execute(b.ctx, sig)
	}()
}

func (b *Bot) commands() {
	b.control.HandleCommand("status", func(_ string) {
		b.control.Send(b.status())
	})
	b.control.HandleCommand("summary", func(payload string) {
		msg, err := b.summary(payload, time.Now())
		if err != nil {
			msg = err.Error()
		}
		b.control.Send(msg)
	})
	b.control.HandleCommand("history", func(_ string) {
		msg, err := b.history(time.Now())
		if err != nil {
			msg = err.Error()
		}
		b.control.Send(msg)
	})
	b.control.HandleCommand("delete", func(payload string) {
		msg, err := b.delete(payload, time.Now())
		if err != nil {
			msg = err.Error()
		}
		b.control.Send(msg)
	})
	b.control.HandleCommand("shutdown", func(_ string) {
		b.control.Send("shutting down")
		b.cancel()
	})
}

func (b *Bot) status() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	if len(b.trades) == 0 {
		return "no trades running"
	}
	symbols := make([]string, 0, len(b.trades))
	for s := range b.trades {
		symbols = append(symbols, s)
	}
	// Sort trades by start time
	sort.Slice(symbols, func(i, j int) bool {
		return b.trades[symbols[i]].start.Before(b.trades[symbols[j]].start)
	})
	sb := &strings.Builder{}
	for _, s := range symbols {
		r := b.trades[s]
		fmt.Fprintf(sb, "⚙️ %s %s %s\n", s, r.signalID, time.Since(r.start).Round(time.Second))
	}
	return strings.TrimSpace(sb.String())
}

// summary reports the ledger totals of a month given as YYYY-MM, the
// current month when payload is empty.
func (b *Bot) summary(payload string, now time.Time) (string, error) {
	month := now
	if payload = strings.TrimSpace(payload); payload != "" {
		var err error
		month, err = time.Parse("2006-01", payload)
		if err != nil {
			return "", fmt.Errorf("invalid month %q, use YYYY-MM", payload)
		}
	}
	s, err := b.ledger.MonthlySummary(month.Year(), month.Month())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📄 %s\nbought: %s\nsold: %s\nfees: %s\nexecuted: %d\nfailed: %d",
		month.Format("2006-01"), s.Bought.StringFixed(2), s.Sold.StringFixed(2), s.Fees.String(), s.Executed, s.Failed), nil
}

func (b *Bot) history(now time.Time) (string, error) {
	outcomes, err := b.store.List(now.Add(-24*time.Hour), now)
	if err != nil {
		return "", err
	}
	if len(outcomes) == 0 {
		return "no trades in the last 24h", nil
	}
	sb := &strings.Builder{}
	for _, o := range outcomes {
		emoji := "💰"
		if o.State != trade.StateCompleted {
			emoji = "❌"
		}
		fmt.Fprintf(sb, "%s %s %s %s", emoji, o.StartTime.Local().Format("15:04"), o.Instrument, o.State)
		if o.State == trade.StateCompleted {
			fmt.Fprintf(sb, " %d/%d OCO", o.Succeeded(), len(o.Brackets))
		}
		fmt.Fprintf(sb, " [%s]\n", shortID(o.ID))
	}
	return strings.TrimSpace(sb.String()), nil
}

// delete removes the stored outcome whose id starts with payload. The prefix
// must match a single outcome.
func (b *Bot) delete(payload string, now time.Time) (string, error) {
	prefix := strings.TrimSpace(payload)
	if len(prefix) < 4 {
		return "", errors.New("usage: /delete <outcome id>, at least 4 characters")
	}
	outcomes, err := b.store.List(time.Time{}, now)
	if err != nil {
		return "", err
	}
	var matches []*trade.Outcome
	for _, o := range outcomes {
		if strings.HasPrefix(o.ID, prefix) {
			matches = append(matches, o)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no outcome with id %s", prefix)
	case 1:
	default:
		return "", fmt.Errorf("%d outcomes match id %s", len(matches), prefix)
	}
	o := matches[0]
	if err := b.store.Delete(o); err != nil {
		return "", fmt.Errorf("metamorph: couldn't delete outcome: %w", err)
	}
	return fmt.Sprintf("🗑 deleted %s %s %s", o.Instrument, o.State, shortID(o.ID)), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
