package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/GinetonSantos/Metamorph/pkg/notify"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	tb "gopkg.in/tucnak/telebot.v2"
)

// Bot is the control chat: it receives notifications and operator commands.
type Bot struct {
	bot      *tb.Bot
	chat     *tb.Chat
	boot     time.Time
	log      zerolog.Logger
	limiter  *rate.Limiter
	messages chan string
}

func New(token string, chatID int64, log zerolog.Logger) (*Bot, error) {
	b, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: couldn't create bot: %w", err)
	}
	chat, err := b.ChatByID(strconv.FormatInt(chatID, 10))
	if err != nil {
		return nil, fmt.Errorf("telegram: couldn't create chat %d: %w", chatID, err)
	}
	return &Bot{
		bot:  b,
		chat: chat,
		boot: time.Now(),
		log:  log,
		// Wait between messages to avoid rate limit errors
		limiter:  rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
		messages: make(chan string, 100),
	}, nil
}

// HandleChat calls handler with every text posted in chatID, either as a
// message or as a channel post.
func (b *Bot) HandleChat(chatID int64, skipReply bool, handler func(string)) {
	h := func(m *tb.Message) {
		if m.Chat.ID != chatID && m.Chat.ID != b.chat.ID {
			return
		}
		if m.Time().Before(b.boot) {
			return
		}
		if m.IsReply() && skipReply {
			return
		}
		handler(m.Text)
	}
	b.bot.Handle(tb.OnText, h)
	b.bot.Handle(tb.OnChannelPost, h)
}

func (b *Bot) HandleCommand(command string, handler func(string)) {
	b.bot.Handle(fmt.Sprintf("/%s", command), func(m *tb.Message) {
		if m.Chat.ID != b.chat.ID {
			return
		}
		if m.Time().Before(b.boot) {
			return
		}
		handler(m.Payload)
	})
}

// Run polls telegram and sends queued messages until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	go b.bot.Start()
	defer b.bot.Stop()
	defer b.bot.Send(b.chat, "🛑 bot stopping")
	for {
		var msg string
		select {
		case <-ctx.Done():
			return nil
		case msg = <-b.messages:
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return nil
		}
		opts := tb.ModeDefault
		if strings.Contains(msg, "`") {
			opts = tb.ModeMarkdown
		}
		if _, err := b.bot.Send(b.chat, msg, opts); err != nil {
			b.log.Error().Err(err).Msg("telegram: couldn't send message")
		}
	}
}

// Send queues a message for the control chat. It drops the message if the
// queue is full.
func (b *Bot) Send(msg string) {
	select {
	case b.messages <- msg:
	default:
		b.log.Warn().Str("message", msg).Msg("telegram: queue full, message dropped")
	}
}

// Notify forwards events of ch to the control chat until ch is closed or
// ctx is done.
func (b *Bot) Notify(ctx context.Context, ch <-chan notify.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			b.Send(e.String())
		}
	}
}
