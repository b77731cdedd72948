package json

import (
	"errors"
	"testing"

	"github.com/GinetonSantos/Metamorph/pkg/signal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		msg       string
		want      *signal.Signal
		wantField string
		ignored   bool
	}{
		{
			name: "valid trade",
			msg: `{
	"instrument": "TFUELUSDT",
	"entry": "0.34141",
	"targets": ["0.36872", "0.39262", "0.42676"],
	"stop": "0.30044",
	"id": "#tf1"
}`,
			want: &signal.Signal{
				Instrument: "TFUELUSDT",
				Entry:      toDecimal("0.34141"),
				Targets: []decimal.Decimal{
					toDecimal("0.36872"),
					toDecimal("0.39262"),
					toDecimal("0.42676"),
				},
				Stop: toDecimal("0.30044"),
				ID:   "#tf1",
			},
		},
		{
			name:    "not json",
			msg:     "NOVO SINAL FREE",
			ignored: true,
		},
		{
			name:      "bad target",
			msg:       `{"instrument": "BTCUSDT", "entry": "10", "targets": ["x"], "stop": "9", "id": "#1"}`,
			wantField: signal.FieldTargets,
		},
		{
			name:      "no targets",
			msg:       `{"instrument": "BTCUSDT", "entry": "10", "targets": [], "stop": "9", "id": "#1"}`,
			wantField: signal.FieldTargets,
		},
	}

	parser := Parser{}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			sig, err := parser.Parse(tt.msg)
			switch {
			case tt.ignored:
				assert.ErrorIs(t, err, signal.ErrIgnored)
			case tt.wantField != "":
				var malformed *signal.MalformedError
				require.True(t, errors.As(err, &malformed), "got %v", err)
				assert.Equal(t, tt.wantField, malformed.Field)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want.Instrument, sig.Instrument)
				assert.Equal(t, tt.want.ID, sig.ID)
				assert.True(t, tt.want.Entry.Equal(sig.Entry))
				assert.True(t, tt.want.Stop.Equal(sig.Stop))
				require.Len(t, sig.Targets, len(tt.want.Targets))
				for i := range tt.want.Targets {
					assert.True(t, tt.want.Targets[i].Equal(sig.Targets[i]))
				}
			}
		})
	}
}

func toDecimal(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}
