package bolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GinetonSantos/Metamorph/pkg/trade"
	"github.com/boltdb/bolt"
)

var bucket = []byte("outcomes")

// keyLayout is fixed width so keys sort chronologically.
const keyLayout = "2006-01-02T15:04:05.000000000Z"

func New(path string) (*Store, error) {
	// It will be created if it doesn't exist.
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: couldn't open bolt db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: couldn't create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

type Store struct {
	db *bolt.DB
}

func (s *Store) Close() error {
	return s.db.Close()
}

// key sorts by start time, the id keeps concurrent trades apart.
func key(o *trade.Outcome) []byte {
	return []byte(fmt.Sprintf("%s_%s", o.StartTime.UTC().Format(keyLayout), o.ID))
}

func (s *Store) List(from time.Time, to time.Time) ([]*trade.Outcome, error) {
	var outcomes []*trade.Outcome
	if err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()

		// Time range
		min := []byte(from.UTC().Format(keyLayout))
		max := []byte(to.UTC().Format(keyLayout) + "~")

		for k, v := c.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, v = c.Next() {
			var o trade.Outcome
			if err := json.Unmarshal(v, &o); err != nil {
				return fmt.Errorf("couldn't decode: %w", err)
			}
			if o.StartTime.Before(from) || o.StartTime.After(to) {
				continue
			}
			outcomes = append(outcomes, &o)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("bolt: couldn't query: %w", err)
	}
	return outcomes, nil
}

func (s *Store) Update(o *trade.Outcome) error {
	k := key(o)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		byt, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("couldn't encode: %w", err)
		}
		return tx.Bucket(bucket).Put(k, byt)
	}); err != nil {
		return fmt.Errorf("bolt: couldn't put %s: %w", k, err)
	}
	return nil
}

func (s *Store) Delete(o *trade.Outcome) error {
	k := key(o)
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(k)
	}); err != nil {
		return fmt.Errorf("bolt: couldn't delete %s: %w", k, err)
	}
	return nil
}
