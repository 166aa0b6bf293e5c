package bolt

import (
	"context"

	"github.com/goodtune/screentime/internal/storage"
	"go.etcd.io/bbolt"
)

type timerStore struct {
	db *bbolt.DB
}

func (s *timerStore) Get(ctx context.Context, id string) (*storage.Timer, error) {
	return getBucketValue[storage.Timer](ctx, s.db, bucketTimers, id)
}

func (s *timerStore) List(ctx context.Context) ([]storage.Timer, error) {
	return listBucket[storage.Timer](ctx, s.db, bucketTimers)
}

func (s *timerStore) ListByUser(ctx context.Context, userID string) ([]storage.Timer, error) {
	all, err := listBucket[storage.Timer](ctx, s.db, bucketTimers)
	if err != nil {
		return nil, err
	}
	timers := make([]storage.Timer, 0, len(all))
	for _, timer := range all {
		if timer.UserID == userID {
			timers = append(timers, timer)
		}
	}
	return timers, nil
}

func (s *timerStore) Upsert(ctx context.Context, timer storage.Timer) error {
	return putBucketValue(ctx, s.db, bucketTimers, timer.ID, timer)
}
