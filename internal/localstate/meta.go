package localstate

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Meta bucket keys.
const (
	keyLastPull      = "last_pull"
	keyLastPush      = "last_push"
	keyLastLocalEdit = "last_local_edit"
)

// SaveLastPull records when the last successful pull from the network
// completed.
func (s *Store) SaveLastPull(t time.Time) error { return s.saveTime(keyLastPull, t) }

// LastPull returns the time of the last successful pull, zero if none.
func (s *Store) LastPull() (time.Time, error) { return s.loadTime(keyLastPull) }

// SaveLastPush records when the last successful push to the network
// completed.
func (s *Store) SaveLastPush(t time.Time) error { return s.saveTime(keyLastPush, t) }

// LastPush returns the time of the last successful push, zero if none.
func (s *Store) LastPush() (time.Time, error) { return s.loadTime(keyLastPush) }

// SaveLastLocalEdit records the time of the most recent local mutation.
// The synchronizer compares it against LastPush to decide whether a pull
// needs a conflict detection pass.
func (s *Store) SaveLastLocalEdit(t time.Time) error { return s.saveTime(keyLastLocalEdit, t) }

// LastLocalEdit returns the time of the most recent local mutation, zero
// if none.
func (s *Store) LastLocalEdit() (time.Time, error) { return s.loadTime(keyLastLocalEdit) }

func (s *Store) saveTime(key string, t time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(t.Unix()))
		if err := bucket.Put([]byte(key), buf); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
		return nil
	})
}

func (s *Store) loadTime(key string) (time.Time, error) {
	var t time.Time
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		buf := bucket.Get([]byte(key))
		if buf == nil {
			return nil
		}
		t = time.Unix(int64(binary.BigEndian.Uint64(buf)), 0)
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return t, nil
}
