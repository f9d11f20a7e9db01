package simnet

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

var boltBucket = []byte("events")

// EventStore persists recorded events.
type EventStore interface {
	Append(rec Record) error
	Records() ([]Record, error)
	Close() error
}

type inMemoryEventStore struct {
	mu   sync.Mutex
	recs []Record
}

// InMemoryEventStore keeps records in memory, for tests and short runs.
func InMemoryEventStore() EventStore {
	return &inMemoryEventStore{}
}

func (s *inMemoryEventStore) Append(rec Record) error {
	s.mu.Lock()
	s.recs = append(s.recs, rec)
	s.mu.Unlock()
	return nil
}

func (s *inMemoryEventStore) Records() ([]Record, error) {
	s.mu.Lock()
	recs := make([]Record, len(s.recs))
	copy(recs, s.recs)
	s.mu.Unlock()
	return recs, nil
}

func (s *inMemoryEventStore) Close() error { return nil }

type boltEventStore struct {
	db *bbolt.DB
}

// BoltEventStore persists records in a bbolt file, keyed by the store's
// append sequence.
func BoltEventStore(path string) (EventStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(boltBucket); err != nil {
			return fmt.Errorf("failed to create bucket: %s", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &boltEventStore{db: db}, nil
}

func (s *boltEventStore) Append(rec Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		val, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		return b.Put(key, val)
	})
}

func (s *boltEventStore) Records() ([]Record, error) {
	var recs []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *boltEventStore) Close() error {
	return s.db.Close()
}
