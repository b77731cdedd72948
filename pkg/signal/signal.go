package signal

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Signal is a long trade intent extracted from a single feed message.
type Signal struct {
	Instrument string
	Entry      decimal.Decimal
	Targets    []decimal.Decimal
	Stop       decimal.Decimal
	ID         string
}

type Parser interface {
	Parse(text string) (*Signal, error)
}

// ErrIgnored is returned for messages that are not trade signals, including
// the informational FREE variant.
var ErrIgnored = errors.New("signal: not a trade signal")

// MalformedError is returned when a message looks like a signal but one of
// its fields can't be extracted.
type MalformedError struct {
	Text  string
	Field string
	Err   error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signal: malformed signal, invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("signal: malformed signal, missing %s", e.Field)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

const (
	FieldInstrument = "instrument"
	FieldEntry      = "entry"
	FieldTargets    = "targets"
	FieldStop       = "stop"
	FieldID         = "id"
)

const (
	triggerKeyword = "NOVO SINAL"
	freeKeyword    = "NOVO SINAL FREE"
	buyLabel       = "Compra:"
)

type parser struct {
	pair   *regexp.Regexp
	entry  *regexp.Regexp
	target *regexp.Regexp
	stop   *regexp.Regexp
	id     *regexp.Regexp
}

// NewParser returns the parser for the channel's text format. Only pairs
// settled in quote are recognized.
func NewParser(quote string) (Parser, error) {
	if quote == "" {
		return nil, errors.New("signal: empty quote currency")
	}
	exprs := []string{
		fmt.Sprintf(`#(\w+%s)`, regexp.QuoteMeta(strings.ToUpper(quote))),
		`Compra:\s*([0-9.]+)`,
		`Alvo\s*\d+:\s*([0-9.]+)`,
		`StopLoss:\s*([0-9.]+)`,
		`ID:\s*(#[A-Za-z0-9]+)`,
	}
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("signal: couldn't create regex: %w", err)
		}
		compiled[i] = re
	}
	return &parser{
		pair:   compiled[0],
		entry:  compiled[1],
		target: compiled[2],
		stop:   compiled[3],
		id:     compiled[4],
	}, nil
}

// IsTrigger reports whether text should be handled as a new signal.
func IsTrigger(text string) bool {
	return strings.Contains(text, triggerKeyword) && strings.Contains(text, "#") && strings.Contains(text, buyLabel)
}

func (p *parser) Parse(text string) (*Signal, error) {
	if strings.Contains(text, freeKeyword) {
		return nil, fmt.Errorf("%w: free signal without trading data", ErrIgnored)
	}
	if !IsTrigger(text) {
		return nil, ErrIgnored
	}

	sig := &Signal{}
	match := p.pair.FindStringSubmatch(text)
	if len(match) < 2 {
		return nil, &MalformedError{Text: text, Field: FieldInstrument}
	}
	sig.Instrument = match[1]

	var err error
	if sig.Entry, err = p.number(text, p.entry, FieldEntry); err != nil {
		return nil, err
	}

	for _, m := range p.target.FindAllStringSubmatch(text, -1) {
		price, err := decimal.NewFromString(m[1])
		if err != nil {
			return nil, &MalformedError{Text: text, Field: FieldTargets, Err: err}
		}
		sig.Targets = append(sig.Targets, price)
	}
	if len(sig.Targets) == 0 {
		return nil, &MalformedError{Text: text, Field: FieldTargets}
	}

	if sig.Stop, err = p.number(text, p.stop, FieldStop); err != nil {
		return nil, err
	}

	match = p.id.FindStringSubmatch(text)
	if len(match) < 2 {
		return nil, &MalformedError{Text: text, Field: FieldID}
	}
	sig.ID = match[1]

	if err := sig.Validate(); err != nil {
		err.Text = text
		return nil, err
	}
	return sig, nil
}

func (p *parser) number(text string, re *regexp.Regexp, field string) (decimal.Decimal, error) {
	match := re.FindStringSubmatch(text)
	if len(match) < 2 {
		return decimal.Zero, &MalformedError{Text: text, Field: field}
	}
	d, err := decimal.NewFromString(match[1])
	if err != nil {
		return decimal.Zero, &MalformedError{Text: text, Field: field, Err: err}
	}
	return d, nil
}

// Validate checks the prices of a long signal: all positive, stop below entry.
func (s *Signal) Validate() *MalformedError {
	switch {
	case s.Instrument == "":
		return &MalformedError{Field: FieldInstrument}
	case !s.Entry.IsPositive():
		return &MalformedError{Field: FieldEntry, Err: fmt.Errorf("price %s is not positive", s.Entry)}
	case len(s.Targets) == 0:
		return &MalformedError{Field: FieldTargets}
	case !s.Stop.IsPositive():
		return &MalformedError{Field: FieldStop, Err: fmt.Errorf("price %s is not positive", s.Stop)}
	case !s.Stop.LessThan(s.Entry):
		return &MalformedError{Field: FieldStop, Err: fmt.Errorf("stop %s is not below entry %s", s.Stop, s.Entry)}
	case s.ID == "":
		return &MalformedError{Field: FieldID}
	}
	for i, t := range s.Targets {
		if !t.IsPositive() {
			return &MalformedError{Field: FieldTargets, Err: fmt.Errorf("target %d price %s is not positive", i+1, t)}
		}
	}
	return nil
}
