// Package localstate keeps instance-private state that must survive
// restarts but never syncs to the network share: synchronization
// watermarks and issued admin refresh sessions.
package localstate

import (
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	bucketMeta     = []byte("meta")
	bucketSessions = []byte("sessions")
)

// Store is the bbolt-backed instance-local state store.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) the state database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}

	store := &Store{db: db}
	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return fmt.Errorf("failed to create meta bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return fmt.Errorf("failed to create sessions bucket: %w", err)
		}
		return nil
	})
}
