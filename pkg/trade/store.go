package trade

import "time"

// Store persists finished outcomes.
type Store interface {
	List(from time.Time, to time.Time) ([]*Outcome, error)
	Update(*Outcome) error
	Delete(*Outcome) error
}
