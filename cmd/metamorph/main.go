package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/GinetonSantos/Metamorph"
	"github.com/GinetonSantos/Metamorph/pkg/exchange/binance"
	"github.com/GinetonSantos/Metamorph/pkg/exchange/metadata"
	"github.com/GinetonSantos/Metamorph/pkg/logger"
	"github.com/GinetonSantos/Metamorph/pkg/notify"
	"github.com/GinetonSantos/Metamorph/pkg/signal/parser"
	"github.com/GinetonSantos/Metamorph/pkg/trade"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	// Load .env if present
	_ = godotenv.Load()

	// Create signal based context
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
			cancel()
		}
		signal.Stop(c)
	}()

	// Launch command
	cmd := newCommand()
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *ffcli.Command {
	fs := flag.NewFlagSet("metamorph", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "metamorph [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newRunCommand(),
			newParseCommand(),
		},
	}
}

func newRunCommand() *ffcli.Command {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	db := fs.String("db", "metamorph.db", "database path")
	ledgerPath := fs.String("ledger", "operations.csv", "csv ledger path")
	key := fs.String("exchange-key", "", "binance api key")
	secret := fs.String("exchange-secret", "", "binance api secret")
	apiID := fs.Int("telegram-api-id", 0, "telegram api id to read signals with a user account")
	apiHash := fs.String("telegram-api-hash", "", "telegram api hash")
	phone := fs.String("telegram-phone", "", "telegram phone number")
	session := fs.String("telegram-session", "metamorph.session", "telegram session file")
	signalChat := fs.Int64("telegram-channel", 0, "telegram chat id to read signals")
	token := fs.String("telegram-token", "", "telegram bot token (optional)")
	controlChat := fs.Int64("telegram-control-chat", 0, "telegram chat id for notifications and commands")
	parserName := fs.String("parser", "text", "signal parser (text or json)")
	currency := fs.String("currency", "USDT", "quote currency")
	logFile := fs.String("log-file", "metamorph.log", "log file path, empty to disable")
	logLevel := fs.String("log-level", "info", "log level")
	metricsAddr := fs.String("metrics-addr", "", "prometheus metrics address (optional)")
	dry := fs.Bool("dry", false, "enable dry mode")
	debug := fs.Bool("debug", false, "enable debug mode")

	return &ffcli.Command{
		Name:       "run",
		ShortUsage: "metamorph run [flags]",
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
			ff.WithEnvVarPrefix("METAMORPH"),
		},
		ShortHelp: "run metamorph bot",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			if *db == "" {
				return errors.New("missing db path")
			}
			if *ledgerPath == "" {
				return errors.New("missing ledger path")
			}
			if *dry {
				*db = drySuffix(*db, ".db")
				*ledgerPath = drySuffix(*ledgerPath, ".csv")
			}
			if !*dry {
				if *key == "" {
					return errors.New("missing exchange api key")
				}
				if *secret == "" {
					return errors.New("missing exchange api secret")
				}
			}
			if *apiID == 0 && *token == "" {
				return errors.New("missing telegram api id or telegram token")
			}
			if *apiID != 0 {
				if *apiHash == "" {
					return errors.New("missing telegram api hash")
				}
				if *phone == "" {
					return errors.New("missing telegram phone")
				}
			}
			if *token != "" && *controlChat == 0 {
				return errors.New("missing telegram control chat")
			}
			if *signalChat == 0 {
				return errors.New("missing telegram channel")
			}
			if *currency == "" {
				return errors.New("missing currency")
			}
			if *debug {
				*logLevel = "debug"
			}
			lg := logger.New(*logLevel, *logFile)
			bot, err := metamorph.NewBot(&metamorph.Config{
				DBPath:          *db,
				LedgerPath:      *ledgerPath,
				APIKey:          *key,
				APISecret:       *secret,
				Currency:        *currency,
				Parser:          *parserName,
				Dry:             *dry,
				Debug:           *debug,
				TelegramAPIID:   *apiID,
				TelegramAPIHash: *apiHash,
				TelegramPhone:   *phone,
				TelegramSession: *session,
				SignalChat:      *signalChat,
				Code:            readCode,
				ControlToken:    *token,
				ControlChat:     *controlChat,
				MetricsAddr:     *metricsAddr,
			}, lg)
			if err != nil {
				return err
			}
			return bot.Run(ctx)
		},
	}
}

func newParseCommand() *ffcli.Command {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	parserName := fs.String("parser", "text", "signal parser (text or json)")
	currency := fs.String("currency", "USDT", "quote currency")
	execute := fs.Bool("execute", false, "run the signal against a dry exchange")

	return &ffcli.Command{
		Name:       "parse",
		ShortUsage: "metamorph parse [flags] <file|->",
		ShortHelp:  "parse a signal message and print the result",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("expected one file argument, use - for stdin")
			}
			var r io.Reader = os.Stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("couldn't open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}
			text, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("couldn't read message: %w", err)
			}
			p, err := parser.NewParser(*parserName, *currency)
			if err != nil {
				return err
			}
			sig, err := p.Parse(string(text))
			if err != nil {
				return err
			}
			fmt.Printf("instrument: %s\nentry: %s\ntargets: %s\nstop: %s\nid: %s\n",
				sig.Instrument, sig.Entry, joinDecimals(sig.Targets), sig.Stop, sig.ID)
			if !*execute {
				return nil
			}

			lg := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			ex := binance.NewDry()
			executor := trade.NewExecutor(lg, ex, metadata.New(ex, lg, true), notify.Nop{}, *currency, trade.WithDry())
			o := executor.Execute(ctx, sig)
			fmt.Printf("state: %s\n", o.State)
			if o.Reason != "" {
				fmt.Printf("reason: %s\n", o.Reason)
			}
			if o.Plan != nil {
				fmt.Printf("plan: %s x %s\n", o.Plan.Label, o.Plan.Quantity)
			}
			for _, b := range o.Brackets {
				fmt.Printf("bracket: target %s quantity %s stop %s ok %t\n", b.Price, b.Quantity, o.StopPrice, b.OK())
			}
			return nil
		},
	}
}

func joinDecimals(ds []decimal.Decimal) string {
	parts := make([]string, 0, len(ds))
	for _, t := range ds {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, ", ")
}

func drySuffix(path, ext string) string {
	if strings.HasSuffix(path, ".dry"+ext) {
		return path
	}
	return fmt.Sprintf("%s.dry%s", strings.TrimSuffix(path, ext), ext)
}

func readCode(ctx context.Context) (string, error) {
	fmt.Print("Enter telegram code: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}
