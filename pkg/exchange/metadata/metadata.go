// Package metadata memoizes per-symbol trading constraints.
package metadata

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/GinetonSantos/Metamorph/pkg/exchange"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Cache returns the constraints of a symbol, looking them up once per
// process. Lookups never fail: on error the default constraints are returned
// and not cached, so a later call may still succeed.
type Cache struct {
	exchange exchange.Exchange
	log      zerolog.Logger
	dry      bool
	retries  int
	wait     time.Duration

	lock    sync.RWMutex
	symbols map[string]exchange.Constraints
}

type Option func(*Cache)

// WithRetries sets how many times a transient transport error is retried.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *Cache) {
		c.retries = n
		c.wait = wait
	}
}

func New(ex exchange.Exchange, log zerolog.Logger, dry bool, opts ...Option) *Cache {
	c := &Cache{
		exchange: ex,
		log:      log,
		dry:      dry,
		retries:  2,
		wait:     500 * time.Millisecond,
		symbols:  make(map[string]exchange.Constraints),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Constraints(ctx context.Context, symbol string) exchange.Constraints {
	if c.dry {
		return exchange.DefaultConstraints
	}
	c.lock.RLock()
	cached, ok := c.symbols[symbol]
	c.lock.RUnlock()
	if ok {
		return cached
	}

	// Concurrent first lookups for the same symbol may both hit the venue,
	// the second store wins with an identical value.
	constraints, err := c.lookup(ctx, symbol)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Stringer("defaults", exchange.DefaultConstraints).
			Msg("metadata: couldn't get constraints, using defaults")
		return exchange.DefaultConstraints
	}

	c.lock.Lock()
	if prev, ok := c.symbols[symbol]; ok {
		constraints = prev
	} else {
		c.symbols[symbol] = constraints
	}
	c.lock.Unlock()
	return constraints
}

func (c *Cache) lookup(ctx context.Context, symbol string) (exchange.Constraints, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.wait
	var attempt int
	for {
		constraints, err := c.exchange.Constraints(ctx, symbol)
		if err == nil {
			if verr := validate(constraints); verr != nil {
				return exchange.Constraints{}, verr
			}
			return constraints, nil
		}
		if !Transient(err) || attempt >= c.retries {
			return exchange.Constraints{}, err
		}
		attempt++
		select {
		case <-ctx.Done():
			return exchange.Constraints{}, ctx.Err()
		case <-time.After(b.NextBackOff()):
		}
	}
}

var errInvalidConstraints = errors.New("metadata: non positive constraint")

func validate(c exchange.Constraints) error {
	if !c.QuantityStep.IsPositive() || !c.PriceStep.IsPositive() || c.MinQuantity.IsNegative() || c.MinOrderValue.IsNegative() {
		return errInvalidConstraints
	}
	return nil
}

// Transient reports whether err is a network timeout worth retrying.
func Transient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
