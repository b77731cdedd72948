package mtproto

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestHandle(t *testing.T) {
	var got []string
	l := New(1, "hash", "+5500000000000", "session.json", 42, zerolog.Nop(), func(s string) { got = append(got, s) }, nil)

	l.handle(&tg.Message{PeerID: &tg.PeerChannel{ChannelID: 42}, Message: "NOVO SINAL"})
	l.handle(&tg.Message{PeerID: &tg.PeerChannel{ChannelID: 7}, Message: "other channel"})
	l.handle(&tg.Message{PeerID: &tg.PeerChannel{ChannelID: 42}, Message: "mine", Out: true})
	l.handle(&tg.MessageEmpty{})

	assert.Equal(t, []string{"NOVO SINAL"}, got)
}

func TestFromPeer(t *testing.T) {
	id, err := fromPeer(&tg.PeerUser{UserID: 3})
	assert.NoError(t, err)
	assert.Equal(t, int64(3), id)

	_, err = fromPeer(nil)
	assert.Error(t, err)
}
