package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screentime/internal/storage"
	"github.com/redis/go-redis/v9"
)

// mutateMaxAttempts bounds the optimistic retry loop in Mutate.
const mutateMaxAttempts = 5

type sessionStore struct {
	client *redis.Client
}

func sessionKey(date, timerID string) string {
	return fmt.Sprintf("screentime:session:%s:%s", date, timerID)
}

func runningSetKey(date string) string {
	return fmt.Sprintf("screentime:sessions:running:%s", date)
}

func indexSetKey(date string) string {
	return fmt.Sprintf("screentime:sessions:index:%s", date)
}

const datesSetKey = "screentime:sessions:dates"

func (s *sessionStore) Get(ctx context.Context, timerID, date string) (*storage.Session, error) {
	data, err := s.client.HGetAll(ctx, sessionKey(date, timerID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}
	return parseSession(data)
}

// Mutate applies fn under optimistic versioning: read the session (or a
// fresh idle one), apply fn, then write through a Lua script that verifies
// the version is unchanged. A lost race re-reads and retries so the second
// writer always observes the first writer's state before computing its own
// transition.
func (s *sessionStore) Mutate(ctx context.Context, timerID, date string, fn func(*storage.Session) error) (*storage.Session, error) {
	script := redis.NewScript(writeSessionScript)

	for attempt := 0; attempt < mutateMaxAttempts; attempt++ {
		session := storage.Session{
			TimerID: timerID,
			Date:    date,
			Status:  storage.StatusIdle,
		}

		data, err := s.client.HGetAll(ctx, sessionKey(date, timerID)).Result()
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			parsed, err := parseSession(data)
			if err != nil {
				return nil, err
			}
			session = *parsed
		}

		expectedVersion := session.Version

		if err := fn(&session); err != nil {
			return nil, err
		}

		session.TimerID = timerID
		session.Date = date
		session.Version = expectedVersion + 1

		startedAt := ""
		if !session.StartedAt.IsZero() {
			startedAt = session.StartedAt.Format(time.RFC3339Nano)
		}

		keys := []string{
			sessionKey(date, timerID),
			runningSetKey(date),
			indexSetKey(date),
			datesSetKey,
		}
		args := []interface{}{
			expectedVersion,
			timerID,
			date,
			string(session.Status),
			startedAt,
			session.ElapsedSeconds,
			session.BonusSeconds,
			formatBool(session.WarningSent),
			formatBool(session.ExpiredSent),
			session.Version,
		}

		ok, err := script.Run(ctx, s.client, keys, args...).Int()
		if err != nil {
			return nil, err
		}
		if ok == 1 {
			return &session, nil
		}
		// Version moved underneath us; re-read and retry.
	}

	return nil, storage.ErrConflict
}

func (s *sessionStore) ListRunning(ctx context.Context, date string) ([]storage.Session, error) {
	timerIDs, err := s.client.SMembers(ctx, runningSetKey(date)).Result()
	if err != nil {
		return nil, err
	}
	if len(timerIDs) == 0 {
		return []storage.Session{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(timerIDs))
	for i, id := range timerIDs {
		cmds[i] = pipe.HGetAll(ctx, sessionKey(date, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	sessions := make([]storage.Session, 0, len(timerIDs))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		session, err := parseSession(data)
		if err != nil {
			continue
		}
		// Tolerate a stale index entry
		if session.Running() {
			sessions = append(sessions, *session)
		}
	}

	return sessions, nil
}

func (s *sessionStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	dates, err := s.client.SMembers(ctx, datesSetKey).Result()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, date := range dates {
		if date >= cutoffDate {
			continue
		}

		timerIDs, err := s.client.SMembers(ctx, indexSetKey(date)).Result()
		if err != nil {
			return deleted, err
		}

		for _, id := range timerIDs {
			removed, err := s.client.Del(ctx, sessionKey(date, id)).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(removed)
		}

		pipe := s.client.Pipeline()
		pipe.Del(ctx, indexSetKey(date))
		pipe.Del(ctx, runningSetKey(date))
		pipe.SRem(ctx, datesSetKey, date)
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, err
		}
	}

	return deleted, nil
}
