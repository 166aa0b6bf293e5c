package bolt

import (
	"bytes"
	"context"
	"time"

	"github.com/goodtune/screentime/internal/storage"
	"go.etcd.io/bbolt"
)

type auditStore struct {
	db *bbolt.DB
}

func (s *auditStore) Append(ctx context.Context, entry storage.AuditEntry) error {
	key, err := auditKey(entry.TimerID, entry.Timestamp)
	if err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = key
	}
	return putBucketValue(ctx, s.db, bucketAudit, key, entry)
}

func (s *auditStore) ListByTimer(ctx context.Context, timerID string, limit int) ([]storage.AuditEntry, error) {
	prefix := []byte(timerID + "/")
	entries := make([]storage.AuditEntry, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketAudit))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var entry storage.AuditEntry
			if err := unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Keys sort oldest first; return newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *auditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketAudit))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var entry storage.AuditEntry
			if err := unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.Timestamp.Before(cutoff) {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
