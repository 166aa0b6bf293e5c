package timer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goodtune/screentime/internal/storage"
	"github.com/rs/zerolog"
)

// fakeNotifier records dispatched notifications and can be told to fail.
type fakeNotifier struct {
	sent []string
	fail bool
}

func (f *fakeNotifier) Notify(ctx context.Context, userID, subject, message string) error {
	if f.fail {
		return errors.New("webhook unreachable")
	}
	f.sent = append(f.sent, fmt.Sprintf("%s: %s", userID, subject))
	return nil
}

func newTestSweeper(t *testing.T, store storage.Store, clock Clock, notifier *fakeNotifier) *Sweeper {
	t.Helper()

	return NewSweeper(store, clock, notifier, SweepConfig{
		WarningThreshold: 10 * time.Minute,
		AdminUserIDs:     []string{"parent"},
		AuditRetention:   90 * 24 * time.Hour,
	}, zerolog.Nop())
}

func TestSweepWarningAndExpiry(t *testing.T) {
	store := openTestStore(t)
	clock := &TestClock{CurrentTime: testNow}
	notifier := &fakeNotifier{}
	service := NewService(store, clock, zerolog.Nop())
	sweeper := newTestSweeper(t, store, clock, notifier)

	seedTimer(t, store, storage.Timer{
		ID: "t1", UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 60, WeekendMinutes: 120, Active: true,
	})

	if _, err := service.Start(context.Background(), "t1", "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// 50 minutes in: 600 seconds remain, exactly at the warning threshold.
	clock.Advance(50 * time.Minute)

	result, err := sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Warned != 1 || result.Expired != 0 {
		t.Fatalf("expected 1 warning and 0 expiries, got %+v", result)
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != "alice: Screen time warning" {
		t.Fatalf("unexpected notifications: %v", notifier.sent)
	}

	date := testNow.Format(storage.DateFormat)
	sess, err := store.Sessions().Get(context.Background(), "t1", date)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.ElapsedSeconds != 3000 {
		t.Fatalf("expected 3000 elapsed seconds after sweep, got %d", sess.ElapsedSeconds)
	}
	if !sess.WarningSent {
		t.Fatal("expected warning flag to be set")
	}
	if !sess.Running() {
		t.Fatal("expected session to keep running after warning")
	}

	// 10 minutes later the quota is spent: the sweep force-stops the
	// session and notifies the owner plus the configured admins.
	notifier.sent = nil
	clock.Advance(10 * time.Minute)

	result, err = sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if result.Warned != 0 {
		t.Fatalf("warning must not refire, got %+v", result)
	}
	if result.Expired != 1 {
		t.Fatalf("expected 1 expiry, got %+v", result)
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("expected owner and admin notifications, got %v", notifier.sent)
	}

	sess, err = store.Sessions().Get(context.Background(), "t1", date)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.ElapsedSeconds != 3600 {
		t.Fatalf("expected 3600 elapsed seconds, got %d", sess.ElapsedSeconds)
	}
	if sess.Running() {
		t.Fatal("expected session to be force-stopped")
	}
	if !sess.ExpiredSent {
		t.Fatal("expected expiry flag to be set")
	}

	// A third sweep sees no running sessions and does nothing.
	notifier.sent = nil
	result, err = sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("third sweep: %v", err)
	}
	if result.Updated != 0 || result.Warned != 0 || result.Expired != 0 {
		t.Fatalf("expected idle sweep, got %+v", result)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no notifications, got %v", notifier.sent)
	}
}

func TestSweepWarningRetriesAfterDispatchFailure(t *testing.T) {
	store := openTestStore(t)
	clock := &TestClock{CurrentTime: testNow}
	notifier := &fakeNotifier{fail: true}
	service := NewService(store, clock, zerolog.Nop())
	sweeper := newTestSweeper(t, store, clock, notifier)

	seedTimer(t, store, storage.Timer{
		ID: "t1", UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 60, WeekendMinutes: 120, Active: true,
	})

	if _, err := service.Start(context.Background(), "t1", "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(51 * time.Minute)

	result, err := sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Warned != 0 {
		t.Fatalf("failed dispatch must not count as warned, got %+v", result)
	}

	date := testNow.Format(storage.DateFormat)
	sess, err := store.Sessions().Get(context.Background(), "t1", date)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.WarningSent {
		t.Fatal("warning flag must stay unset after a failed dispatch")
	}

	// Once delivery recovers, the next sweep sends the warning.
	notifier.fail = false
	clock.Advance(1 * time.Minute)

	result, err = sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("retry sweep: %v", err)
	}
	if result.Warned != 1 {
		t.Fatalf("expected warning on retry, got %+v", result)
	}
}

func TestSweepExpiryStopsClockEvenWhenDispatchFails(t *testing.T) {
	store := openTestStore(t)
	clock := &TestClock{CurrentTime: testNow}
	notifier := &fakeNotifier{fail: true}
	service := NewService(store, clock, zerolog.Nop())
	sweeper := newTestSweeper(t, store, clock, notifier)

	seedTimer(t, store, storage.Timer{
		ID: "t1", UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 60, WeekendMinutes: 120, Active: true,
	})

	if _, err := service.Start(context.Background(), "t1", "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(61 * time.Minute)

	result, err := sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Expired != 0 {
		t.Fatalf("failed dispatch must not count as expired, got %+v", result)
	}

	// Enforcement is not held hostage by the notifier: the clock stops
	// regardless of delivery.
	date := testNow.Format(storage.DateFormat)
	sess, err := store.Sessions().Get(context.Background(), "t1", date)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Running() {
		t.Fatal("expected session to be force-stopped despite failed dispatch")
	}
	if sess.ExpiredSent {
		t.Fatal("expiry flag must stay unset after a failed dispatch")
	}
}

func TestSweepCleansUpOldSessions(t *testing.T) {
	store := openTestStore(t)
	clock := &TestClock{CurrentTime: testNow}
	notifier := &fakeNotifier{}
	sweeper := newTestSweeper(t, store, clock, notifier)

	seedTimer(t, store, storage.Timer{
		ID: "t1", UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 60, WeekendMinutes: 120, Active: true,
	})

	yesterday := testNow.AddDate(0, 0, -1).Format(storage.DateFormat)
	_, err := store.Sessions().Mutate(context.Background(), "t1", yesterday, func(sess *storage.Session) error {
		sess.ElapsedSeconds = 1200
		return nil
	})
	if err != nil {
		t.Fatalf("seed old session: %v", err)
	}

	result, err := sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Cleaned != 1 {
		t.Fatalf("expected 1 cleaned session, got %+v", result)
	}

	if _, err := store.Sessions().Get(context.Background(), "t1", yesterday); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected old session to be gone, got err=%v", err)
	}
}
