// Package store wraps an ordered on-disk key-value store (badger) behind
// a single coarse writer mutex, matching the engine's "one store-mutex
// serializes all mutations, readers share it for a snapshot" model.
package store

import (
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by Get and Batch.Get when the key is absent.
var ErrNotFound = errors.New("store: key not found")

// Store is the persistent key-value store under dataDir/stakepooldb. It
// owns one mutex that every mutation and every snapshot read acquires;
// the StatusServer's ReadAPI holds it only for the duration of its
// snapshot, per the concurrency model.
type Store struct {
	db *badger.DB
	mu sync.Mutex
}

// Open opens (creating if absent) the store under dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(newBadgerLogger()).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get reads a single key under the store mutex. It returns ErrNotFound
// if the key is absent.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key)
}

func (s *Store) getLocked(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			out = append([]byte(nil), v...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// View acquires the store mutex for the duration of fn and hands it a
// read-only Reader, the pattern every ReadAPI method and every payout
// candidate scan uses.
func (s *Store) View(fn func(r *Reader) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Reader{s: s})
}

// Update acquires the store mutex, runs fn against a fresh Batch, and
// commits the batch atomically if fn returns nil. On any error the
// batch is discarded and nothing is written — the caller retries the
// whole step on its next tick.
func (s *Store) Update(fn func(b *Batch) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wb := s.db.NewWriteBatch()
	b := &Batch{
		s:       s,
		wb:      wb,
		mirror:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
	if err := fn(b); err != nil {
		wb.Cancel()
		return err
	}
	return wb.Flush()
}

// Reader is a snapshot view taken under the store mutex.
type Reader struct {
	s *Store
}

// Get reads a single key from the snapshot.
func (r *Reader) Get(key []byte) ([]byte, error) {
	return r.s.getLocked(key)
}

// IteratePrefix walks every key with the given prefix, ascending or
// descending, calling fn for each. Returning an error from fn stops the
// iteration and is returned by IteratePrefix.
func (r *Reader) IteratePrefix(prefix []byte, descending bool, fn func(key, value []byte) error) error {
	return r.s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = descending
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if descending {
			seek = prefixUpperBound(prefix)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)
			var value []byte
			if err := item.Value(func(v []byte) error {
				value = append([]byte(nil), v...)
				return nil
			}); err != nil {
				return err
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix, used as the reverse-iterator seek key (badger's
// reverse Seek wants the first key <= seek, which for a prefix scan
// means one past the last possible key in that prefix).
func prefixUpperBound(prefix []byte) []byte {
	bound := append([]byte(nil), prefix...)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] != 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	// prefix is all 0xff bytes; there is no upper bound short of +1 byte.
	return append(bound, 0xff)
}
