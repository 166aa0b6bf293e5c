package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrConflict is returned when an optimistic write loses its race and
// retrying inside the backend did not help. Callers treat it as retryable.
var ErrConflict = errors.New("storage: write conflict")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Timers() TimerStore
	Sessions() SessionStore
	Audit() AuditStore
}

// TimerStore manages timer configuration records.
type TimerStore interface {
	Get(ctx context.Context, id string) (*Timer, error)
	List(ctx context.Context) ([]Timer, error)
	ListByUser(ctx context.Context, userID string) ([]Timer, error)
	Upsert(ctx context.Context, timer Timer) error
}

// SessionStore manages per-timer per-date session records.
//
// Mutate is the single read-modify-write unit every state transition goes
// through: it loads the session for (timerID, date) — creating a fresh idle
// session if none exists yet — applies fn, and persists the result
// atomically with a version bump. If fn returns an error nothing is
// written and the error is propagated unchanged, which lets callers abort
// a transition (e.g. a blocked start) without a separate read.
type SessionStore interface {
	Get(ctx context.Context, timerID, date string) (*Session, error)
	Mutate(ctx context.Context, timerID, date string, fn func(*Session) error) (*Session, error)
	ListRunning(ctx context.Context, date string) ([]Session, error)
	DeleteBefore(ctx context.Context, cutoffDate string) (int, error)
}

// AuditStore manages the append-only timer audit log.
type AuditStore interface {
	Append(ctx context.Context, entry AuditEntry) error
	ListByTimer(ctx context.Context, timerID string, limit int) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
