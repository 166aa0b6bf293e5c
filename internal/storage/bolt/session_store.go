package bolt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goodtune/screentime/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

// Session keys are date-prefixed so retention cleanup and the per-date
// running scan are cheap cursor range scans.
func sessionKey(date, timerID string) string {
	return fmt.Sprintf("%s/%s", date, timerID)
}

func (s *sessionStore) Get(ctx context.Context, timerID, date string) (*storage.Session, error) {
	return getBucketValue[storage.Session](ctx, s.db, bucketSessions, sessionKey(date, timerID))
}

func (s *sessionStore) Mutate(ctx context.Context, timerID, date string, fn func(*storage.Session) error) (*storage.Session, error) {
	var result *storage.Session
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return fmt.Errorf("sessions bucket missing")
		}

		key := []byte(sessionKey(date, timerID))
		session := storage.Session{
			TimerID: timerID,
			Date:    date,
			Status:  storage.StatusIdle,
		}
		if existing := b.Get(key); existing != nil {
			if err := unmarshal(existing, &session); err != nil {
				return err
			}
		}

		if err := fn(&session); err != nil {
			return err
		}

		session.TimerID = timerID
		session.Date = date
		session.Version++

		data, err := marshal(session)
		if err != nil {
			return err
		}
		if err := b.Put(key, data); err != nil {
			return err
		}
		result = &session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *sessionStore) ListRunning(ctx context.Context, date string) ([]storage.Session, error) {
	prefix := []byte(date + "/")
	sessions := make([]storage.Session, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var session storage.Session
			if err := unmarshal(v, &session); err != nil {
				return err
			}
			if session.Running() {
				sessions = append(sessions, session)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *sessionStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	cutoff := []byte(cutoffDate + "/")
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k, cutoff) < 0; k, _ = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := c.Delete(); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
