package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/screentime/internal/storage"
	"github.com/redis/go-redis/v9"
)

type auditStore struct {
	client *redis.Client
}

func auditLogKey(timerID string) string {
	return fmt.Sprintf("screentime:audit:%s", timerID)
}

const auditTimersKey = "screentime:audit:timers"

func (s *auditStore) Append(ctx context.Context, entry storage.AuditEntry) error {
	if entry.ID == "" {
		id, err := randomID()
		if err != nil {
			return err
		}
		entry.ID = id
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, auditLogKey(entry.TimerID), redis.Z{
		Score:  float64(entry.Timestamp.UnixNano()),
		Member: string(data),
	})
	pipe.SAdd(ctx, auditTimersKey, entry.TimerID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *auditStore) ListByTimer(ctx context.Context, timerID string, limit int) ([]storage.AuditEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	members, err := s.client.ZRevRange(ctx, auditLogKey(timerID), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]storage.AuditEntry, 0, len(members))
	for _, member := range members {
		var entry storage.AuditEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *auditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	timerIDs, err := s.client.SMembers(ctx, auditTimersKey).Result()
	if err != nil {
		return 0, err
	}

	max := "(" + strconv.FormatInt(cutoff.UnixNano(), 10)

	deleted := 0
	for _, id := range timerIDs {
		removed, err := s.client.ZRemRangeByScore(ctx, auditLogKey(id), "-inf", max).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(removed)
	}

	return deleted, nil
}

func randomID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
