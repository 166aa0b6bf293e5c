package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screentime/internal/storage"
	"github.com/redis/go-redis/v9"
)

type timerStore struct {
	client *redis.Client
}

func timerKey(id string) string {
	return fmt.Sprintf("screentime:timer:%s", id)
}

func userTimersKey(userID string) string {
	return fmt.Sprintf("screentime:timers:user:%s", userID)
}

const timersSetKey = "screentime:timers"

func (s *timerStore) Get(ctx context.Context, id string) (*storage.Timer, error) {
	data, err := s.client.HGetAll(ctx, timerKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}
	return parseTimer(data)
}

func (s *timerStore) List(ctx context.Context) ([]storage.Timer, error) {
	ids, err := s.client.SMembers(ctx, timersSetKey).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchTimers(ctx, ids, "")
}

func (s *timerStore) ListByUser(ctx context.Context, userID string) ([]storage.Timer, error) {
	ids, err := s.client.SMembers(ctx, userTimersKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchTimers(ctx, ids, userID)
}

func (s *timerStore) fetchTimers(ctx context.Context, ids []string, userID string) ([]storage.Timer, error) {
	if len(ids) == 0 {
		return []storage.Timer{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, timerKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	timers := make([]storage.Timer, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		timer, err := parseTimer(data)
		if err != nil {
			continue
		}
		// Tolerate a stale user index entry
		if userID != "" && timer.UserID != userID {
			continue
		}
		timers = append(timers, *timer)
	}

	return timers, nil
}

func (s *timerStore) Upsert(ctx context.Context, timer storage.Timer) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, timerKey(timer.ID),
		"id", timer.ID,
		"user_id", timer.UserID,
		"name", timer.Name,
		"category", string(timer.Category),
		"weekday_minutes", timer.WeekdayMinutes,
		"weekend_minutes", timer.WeekendMinutes,
		"active", formatBool(timer.Active),
		"created_at", timer.CreatedAt.Format(time.RFC3339Nano),
		"updated_at", timer.UpdatedAt.Format(time.RFC3339Nano),
	)
	pipe.SAdd(ctx, timersSetKey, timer.ID)
	pipe.SAdd(ctx, userTimersKey(timer.UserID), timer.ID)
	_, err := pipe.Exec(ctx)
	return err
}
