package parser

import (
	"testing"

	"github.com/GinetonSantos/Metamorph/pkg/signal/parser/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParser(t *testing.T) {
	p, err := NewParser("json", "USDT")
	require.NoError(t, err)
	assert.IsType(t, json.Parser{}, p)

	p, err = NewParser("text", "USDT")
	require.NoError(t, err)
	sig, err := p.Parse("NOVO SINAL\n#BTCUSDT\nCompra: 10\nAlvo 1: 11\nStopLoss: 9\nID: #x")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", sig.Instrument)

	_, err = NewParser("cryptosignals", "USDT")
	assert.ErrorIs(t, err, ErrNotFound)
}
