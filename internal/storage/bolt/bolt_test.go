package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/screentime/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "screentime.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTimerStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)

	timer := storage.Timer{
		ID: "t1", UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 60, WeekendMinutes: 120,
		Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := store.Timers().Upsert(context.Background(), timer); err != nil {
		t.Fatalf("upsert timer: %v", err)
	}

	got, err := store.Timers().Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get timer: %v", err)
	}
	if got.Name != "Laptop" || got.WeekdayMinutes != 60 || !got.Active {
		t.Fatalf("unexpected timer: %+v", got)
	}

	if _, err := store.Timers().Get(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTimerStoreListByUser(t *testing.T) {
	store := openTestStore(t)

	timers := []storage.Timer{
		{ID: "t1", UserID: "alice", Name: "Laptop", Category: storage.CategoryComputer, Active: true},
		{ID: "t2", UserID: "alice", Name: "Phone", Category: storage.CategoryPhone, Active: true},
		{ID: "t3", UserID: "bob", Name: "Console", Category: storage.CategoryConsole, Active: true},
	}
	for _, timer := range timers {
		if err := store.Timers().Upsert(context.Background(), timer); err != nil {
			t.Fatalf("upsert timer: %v", err)
		}
	}

	mine, err := store.Timers().ListByUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 timers for alice, got %d", len(mine))
	}

	all, err := store.Timers().List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 timers, got %d", len(all))
	}
}

func TestSessionStoreMutateCreatesAndVersions(t *testing.T) {
	store := openTestStore(t)
	date := "2026-01-07"

	sess, err := store.Sessions().Mutate(context.Background(), "t1", date, func(sess *storage.Session) error {
		sess.Status = storage.StatusRunning
		sess.StartedAt = time.Date(2026, 1, 7, 16, 0, 0, 0, time.UTC)
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if sess.Version != 1 {
		t.Fatalf("expected version 1 on first write, got %d", sess.Version)
	}

	sess, err = store.Sessions().Mutate(context.Background(), "t1", date, func(sess *storage.Session) error {
		sess.ElapsedSeconds = 600
		return nil
	})
	if err != nil {
		t.Fatalf("second mutate: %v", err)
	}
	if sess.Version != 2 {
		t.Fatalf("expected version 2, got %d", sess.Version)
	}

	got, err := store.Sessions().Get(context.Background(), "t1", date)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ElapsedSeconds != 600 || !got.Running() {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestSessionStoreMutateAbortsOnError(t *testing.T) {
	store := openTestStore(t)
	date := "2026-01-07"
	boom := errors.New("rejected")

	if _, err := store.Sessions().Mutate(context.Background(), "t1", date, func(sess *storage.Session) error {
		sess.ElapsedSeconds = 999
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}

	// Nothing was written.
	if _, err := store.Sessions().Get(context.Background(), "t1", date); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after aborted mutate, got %v", err)
	}
}

func TestSessionStoreListRunning(t *testing.T) {
	store := openTestStore(t)
	date := "2026-01-07"

	seed := func(timerID string, status storage.SessionStatus) {
		t.Helper()
		_, err := store.Sessions().Mutate(context.Background(), timerID, date, func(sess *storage.Session) error {
			sess.Status = status
			return nil
		})
		if err != nil {
			t.Fatalf("seed session %s: %v", timerID, err)
		}
	}

	seed("t1", storage.StatusRunning)
	seed("t2", storage.StatusPaused)
	seed("t3", storage.StatusRunning)

	// A running session on another date must not appear.
	_, err := store.Sessions().Mutate(context.Background(), "t4", "2026-01-06", func(sess *storage.Session) error {
		sess.Status = storage.StatusRunning
		return nil
	})
	if err != nil {
		t.Fatalf("seed other date: %v", err)
	}

	running, err := store.Sessions().ListRunning(context.Background(), date)
	if err != nil {
		t.Fatalf("list running: %v", err)
	}
	if len(running) != 2 {
		t.Fatalf("expected 2 running sessions, got %d", len(running))
	}
}

func TestSessionStoreDeleteBefore(t *testing.T) {
	store := openTestStore(t)

	for _, date := range []string{"2026-01-05", "2026-01-06", "2026-01-07"} {
		_, err := store.Sessions().Mutate(context.Background(), "t1", date, func(sess *storage.Session) error {
			sess.ElapsedSeconds = 100
			return nil
		})
		if err != nil {
			t.Fatalf("seed session %s: %v", date, err)
		}
	}

	deleted, err := store.Sessions().DeleteBefore(context.Background(), "2026-01-07")
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted sessions, got %d", deleted)
	}

	if _, err := store.Sessions().Get(context.Background(), "t1", "2026-01-07"); err != nil {
		t.Fatalf("today's session must survive: %v", err)
	}
}

func TestAuditStoreAppendAndList(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 1, 7, 16, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		entry := storage.AuditEntry{
			TimerID:   "t1",
			ActorID:   "parent",
			Action:    storage.AuditModified,
			Detail:    "change",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Audit().Append(context.Background(), entry); err != nil {
			t.Fatalf("append audit: %v", err)
		}
	}

	entries, err := store.Audit().ListByTimer(context.Background(), "t1", 2)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries with limit, got %d", len(entries))
	}
	if !entries[0].Timestamp.After(entries[1].Timestamp) {
		t.Fatal("expected newest entry first")
	}

	deleted, err := store.Audit().DeleteBefore(context.Background(), base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("delete audit before: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted entries, got %d", deleted)
	}
}
