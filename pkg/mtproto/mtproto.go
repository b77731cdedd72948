// Package mtproto listens to the signal channel with a telegram user account.
package mtproto

import (
	"context"
	"fmt"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
)

type Listener struct {
	id       int
	hash     string
	phone    string
	session  string
	fromID   int64
	log      zerolog.Logger
	callback func(string)
	code     func(context.Context) (string, error)
}

// New returns a listener that calls callback with the text of every message
// posted by fromID. code is asked for the login code on the first run, later
// runs reuse the session file.
func New(id int, hash, phone, session string, fromID int64, log zerolog.Logger, callback func(string), code func(context.Context) (string, error)) *Listener {
	return &Listener{
		id:       id,
		hash:     hash,
		phone:    phone,
		session:  session,
		fromID:   fromID,
		log:      log,
		callback: callback,
		code:     code,
	}
}

func (l *Listener) Listen(ctx context.Context) error {
	codePrompt := func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
		code, err := l.code(ctx)
		if err != nil {
			return "", fmt.Errorf("mtproto: couldn't read code: %w", err)
		}
		return strings.TrimSpace(code), nil
	}

	// This will setup and perform authentication flow.
	flow := auth.NewFlow(
		auth.CodeOnly(l.phone, auth.CodeAuthenticatorFunc(codePrompt)),
		auth.SendCodeOptions{},
	)

	dispatcher := tg.NewUpdateDispatcher()

	client := telegram.NewClient(l.id, l.hash, telegram.Options{
		SessionStorage: &session.FileStorage{
			Path: l.session,
		},
		UpdateHandler: dispatcher,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("mtproto: couldn't authenticate: %w", err)
		}
		dispatcher.OnNewMessage(func(ctx context.Context, entities tg.Entities, u *tg.UpdateNewMessage) error {
			l.handle(u.Message)
			return nil
		})
		dispatcher.OnNewChannelMessage(func(ctx context.Context, entities tg.Entities, u *tg.UpdateNewChannelMessage) error {
			l.handle(u.Message)
			return nil
		})
		l.log.Info().Int64("from", l.fromID).Msg("mtproto: listening for messages")
		<-ctx.Done()
		return nil
	})
}

func (l *Listener) handle(msg tg.MessageClass) {
	m, ok := msg.(*tg.Message)
	if !ok || m.Out {
		// Outgoing message, not interesting.
		return
	}
	peerID, err := fromPeer(m.PeerID)
	if err != nil {
		l.log.Warn().Err(err).Msg("mtproto: skipping message")
		return
	}
	if peerID != l.fromID {
		return
	}
	l.callback(m.Message)
}

func fromPeer(p tg.PeerClass) (id int64, err error) {
	switch v := p.(type) {
	case *tg.PeerUser:
		return v.UserID, nil
	case *tg.PeerChannel:
		return v.ChannelID, nil
	case *tg.PeerChat:
		return v.ChatID, nil
	}
	return 0, fmt.Errorf("mtproto: invalid peer: %T", p)
}
