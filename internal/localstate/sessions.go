package localstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/compendio/internal/models"
)

// ErrSessionNotFound is returned when a refresh session does not exist or
// has expired.
var ErrSessionNotFound = errors.New("session not found")

// SaveSession persists an issued admin refresh session.
func (s *Store) SaveSession(sess models.RefreshSession) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSessions)
		if bucket == nil {
			return fmt.Errorf("sessions bucket not found")
		}

		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		if err := bucket.Put([]byte(sess.ID), data); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// GetSession returns a stored session by id. Expired sessions are deleted
// on access and reported as ErrSessionNotFound.
func (s *Store) GetSession(id string) (*models.RefreshSession, error) {
	var sess *models.RefreshSession

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSessions)
		if bucket == nil {
			return fmt.Errorf("sessions bucket not found")
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrSessionNotFound
		}

		decoded := &models.RefreshSession{}
		if err := json.Unmarshal(data, decoded); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}

		if decoded.ExpiresAt <= time.Now().Unix() {
			if err := bucket.Delete([]byte(id)); err != nil {
				return fmt.Errorf("failed to delete expired session: %w", err)
			}
			return ErrSessionNotFound
		}

		sess = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// DeleteSession removes a session. Missing sessions are ignored.
func (s *Store) DeleteSession(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSessions)
		if bucket == nil {
			return fmt.Errorf("sessions bucket not found")
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}
