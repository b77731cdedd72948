package json

import (
	"encoding/json"
	"fmt"

	"github.com/GinetonSantos/Metamorph/pkg/signal"
	"github.com/shopspring/decimal"
)

// Parser reads signals encoded as JSON documents, used to inject trades
// without going through the channel text format.
type Parser struct{}

type jsonSignal struct {
	Instrument string   `json:"instrument"`
	Entry      string   `json:"entry"`
	Targets    []string `json:"targets"`
	Stop       string   `json:"stop"`
	ID         string   `json:"id"`
}

func (p Parser) Parse(text string) (*signal.Signal, error) {
	var js jsonSignal
	if err := json.Unmarshal([]byte(text), &js); err != nil {
		return nil, signal.ErrIgnored
	}
	s := &signal.Signal{
		Instrument: js.Instrument,
		ID:         js.ID,
		Targets:    make([]decimal.Decimal, len(js.Targets)),
	}
	var err error
	s.Entry, err = decimal.NewFromString(js.Entry)
	if err != nil {
		return nil, &signal.MalformedError{Text: text, Field: signal.FieldEntry, Err: fmt.Errorf("json: couldn't parse entry price (%s): %w", js.Entry, err)}
	}
	s.Stop, err = decimal.NewFromString(js.Stop)
	if err != nil {
		return nil, &signal.MalformedError{Text: text, Field: signal.FieldStop, Err: fmt.Errorf("json: couldn't parse stop price (%s): %w", js.Stop, err)}
	}
	for i, target := range js.Targets {
		s.Targets[i], err = decimal.NewFromString(target)
		if err != nil {
			return nil, &signal.MalformedError{Text: text, Field: signal.FieldTargets, Err: fmt.Errorf("json: couldn't parse target %d price (%s): %w", i+1, target, err)}
		}
	}
	if merr := s.Validate(); merr != nil {
		merr.Text = text
		return nil, merr
	}
	return s, nil
}
