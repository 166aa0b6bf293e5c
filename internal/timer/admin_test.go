package timer

import (
	"context"
	"testing"
	"time"

	"github.com/goodtune/screentime/internal/storage"
	"github.com/rs/zerolog"
)

func TestAdminCreateTimer(t *testing.T) {
	store := openTestStore(t)
	clock := &TestClock{CurrentTime: testNow}
	admin := NewAdmin(store, clock, zerolog.Nop())

	created, err := admin.CreateTimer(context.Background(), TimerParams{
		UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 60, WeekendMinutes: 120,
	}, "parent")
	if err != nil {
		t.Fatalf("create timer: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated timer ID")
	}
	if !created.Active {
		t.Fatal("expected new timer to be active")
	}

	entries, err := store.Audit().ListByTimer(context.Background(), created.ID, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != storage.AuditCreated {
		t.Fatalf("expected one created audit entry, got %+v", entries)
	}
	if entries[0].ActorID != "parent" {
		t.Fatalf("expected actor parent, got %s", entries[0].ActorID)
	}
}

func TestAdminCreateTimerValidation(t *testing.T) {
	store := openTestStore(t)
	admin := NewAdmin(store, &TestClock{CurrentTime: testNow}, zerolog.Nop())

	tests := []struct {
		name   string
		params TimerParams
	}{
		{"missing user", TimerParams{Name: "x", Category: storage.CategoryPhone}},
		{"missing name", TimerParams{UserID: "alice", Category: storage.CategoryPhone}},
		{"bad category", TimerParams{UserID: "alice", Name: "x", Category: "toaster"}},
		{"negative limit", TimerParams{UserID: "alice", Name: "x", Category: storage.CategoryPhone, WeekdayMinutes: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := admin.CreateTimer(context.Background(), tt.params, "parent"); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestAdminUpdateTimerRetroactiveCutoff(t *testing.T) {
	store := openTestStore(t)
	clock := &TestClock{CurrentTime: testNow}
	admin := NewAdmin(store, clock, zerolog.Nop())
	service := NewService(store, clock, zerolog.Nop())

	created, err := admin.CreateTimer(context.Background(), TimerParams{
		UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 60, WeekendMinutes: 120,
	}, "parent")
	if err != nil {
		t.Fatalf("create timer: %v", err)
	}

	if _, err := service.Start(context.Background(), created.ID, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// 1000 seconds in, the limit drops to 15 minutes (900s). The session
	// is already over the new quota and must stop immediately.
	clock.Advance(1000 * time.Second)

	if _, err := admin.UpdateTimer(context.Background(), created.ID, TimerParams{
		UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 15, WeekendMinutes: 120,
	}, "parent"); err != nil {
		t.Fatalf("update timer: %v", err)
	}

	date := testNow.Format(storage.DateFormat)
	sess, err := store.Sessions().Get(context.Background(), created.ID, date)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Running() {
		t.Fatal("expected session to be force-stopped by the quota reduction")
	}
	if sess.ElapsedSeconds != 1000 {
		t.Fatalf("expected 1000 elapsed seconds banked, got %d", sess.ElapsedSeconds)
	}

	entries, err := store.Audit().ListByTimer(context.Background(), created.ID, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != storage.AuditModified {
		t.Fatalf("expected modified audit entry first, got %+v", entries)
	}
}

func TestAdminUpdateTimerLeavesSessionWithinQuota(t *testing.T) {
	store := openTestStore(t)
	clock := &TestClock{CurrentTime: testNow}
	admin := NewAdmin(store, clock, zerolog.Nop())
	service := NewService(store, clock, zerolog.Nop())

	created, err := admin.CreateTimer(context.Background(), TimerParams{
		UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 60, WeekendMinutes: 120,
	}, "parent")
	if err != nil {
		t.Fatalf("create timer: %v", err)
	}

	if _, err := service.Start(context.Background(), created.ID, "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(300 * time.Second)

	// The reduced limit still leaves headroom; the session keeps running.
	if _, err := admin.UpdateTimer(context.Background(), created.ID, TimerParams{
		UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 30, WeekendMinutes: 120,
	}, "parent"); err != nil {
		t.Fatalf("update timer: %v", err)
	}

	date := testNow.Format(storage.DateFormat)
	sess, err := store.Sessions().Get(context.Background(), created.ID, date)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !sess.Running() {
		t.Fatal("expected session to keep running under the new limit")
	}
}

func TestAdminDeleteTimerSoftDeletes(t *testing.T) {
	store := openTestStore(t)
	clock := &TestClock{CurrentTime: testNow}
	admin := NewAdmin(store, clock, zerolog.Nop())

	created, err := admin.CreateTimer(context.Background(), TimerParams{
		UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 60, WeekendMinutes: 120,
	}, "parent")
	if err != nil {
		t.Fatalf("create timer: %v", err)
	}

	clock.Advance(time.Minute)

	if err := admin.DeleteTimer(context.Background(), created.ID, "parent"); err != nil {
		t.Fatalf("delete timer: %v", err)
	}

	// The record survives for the audit trail, flagged inactive.
	deleted, err := store.Timers().Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get timer: %v", err)
	}
	if deleted.Active {
		t.Fatal("expected timer to be inactive after delete")
	}

	entries, err := store.Audit().ListByTimer(context.Background(), created.ID, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != storage.AuditDeleted {
		t.Fatalf("expected deleted audit entry first, got %+v", entries)
	}
}

func TestAdminGrantBonusCreatesSessionLazily(t *testing.T) {
	store := openTestStore(t)
	clock := &TestClock{CurrentTime: testNow}
	admin := NewAdmin(store, clock, zerolog.Nop())

	created, err := admin.CreateTimer(context.Background(), TimerParams{
		UserID: "alice", Name: "Laptop",
		Category: storage.CategoryComputer, WeekdayMinutes: 60, WeekendMinutes: 120,
	}, "parent")
	if err != nil {
		t.Fatalf("create timer: %v", err)
	}

	if err := admin.GrantBonus(context.Background(), created.ID, 15, "parent"); err != nil {
		t.Fatalf("grant bonus: %v", err)
	}

	date := testNow.Format(storage.DateFormat)
	sess, err := store.Sessions().Get(context.Background(), created.ID, date)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.BonusSeconds != 900 {
		t.Fatalf("expected 900 bonus seconds, got %d", sess.BonusSeconds)
	}
	if sess.Status != storage.StatusIdle {
		t.Fatalf("expected lazily created session to be idle, got %s", sess.Status)
	}

	if err := admin.GrantBonus(context.Background(), created.ID, 0, "parent"); err == nil {
		t.Fatal("expected error for non-positive bonus")
	}
}
