package inmem

import (
	"sort"
	"sync"
	"time"

	"github.com/GinetonSantos/Metamorph/pkg/trade"
)

// Store keeps outcomes in memory, keyed by outcome id.
type Store struct {
	outcomes sync.Map
}

func (s *Store) List(from time.Time, to time.Time) ([]*trade.Outcome, error) {
	var outcomes []*trade.Outcome
	s.outcomes.Range(func(key interface{}, value interface{}) bool {
		o := value.(trade.Outcome)
		if o.StartTime.Before(from) || o.StartTime.After(to) {
			return true
		}
		outcomes = append(outcomes, &o)
		return true
	})
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].StartTime.Before(outcomes[j].StartTime)
	})
	return outcomes, nil
}

func (s *Store) Update(o *trade.Outcome) error {
	s.outcomes.Store(o.ID, *o)
	return nil
}

func (s *Store) Delete(o *trade.Outcome) error {
	s.outcomes.Delete(o.ID)
	return nil
}
