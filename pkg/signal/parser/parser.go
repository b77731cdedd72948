package parser

import (
	"errors"

	"github.com/GinetonSantos/Metamorph/pkg/signal"
	"github.com/GinetonSantos/Metamorph/pkg/signal/parser/json"
)

var ErrNotFound = errors.New("parser: not found")

// NewParser returns the parser registered under name. The text parser only
// accepts pairs settled in quote.
func NewParser(name, quote string) (signal.Parser, error) {
	switch name {
	case "json":
		return json.Parser{}, nil
	case "", "text":
		return signal.NewParser(quote)
	default:
		return nil, ErrNotFound
	}
}
