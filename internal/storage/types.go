package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateFormat is the canonical layout for session calendar dates.
const DateFormat = "2006-01-02"

// Category classifies the device a timer meters.
type Category string

const (
	CategoryComputer Category = "computer"
	CategoryPhone    Category = "phone"
	CategoryTablet   Category = "tablet"
	CategoryConsole  Category = "console"
	CategoryTV       Category = "tv"
)

// UnmarshalJSON implements json.Unmarshaler to normalize the category to lowercase.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := Category(strings.ToLower(s))

	switch normalized {
	case CategoryComputer, CategoryPhone, CategoryTablet, CategoryConsole, CategoryTV:
		*c = normalized
		return nil
	default:
		return fmt.Errorf("invalid category: %s (must be computer, phone, tablet, console, or tv)", s)
	}
}

// MarshalJSON implements json.Marshaler to ensure lowercase output.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

// Timer is a named daily screen-time quota for one user and device category.
// Timers are soft-deleted by clearing Active so the audit trail stays intact.
type Timer struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Category       Category  `json:"category"`
	WeekdayMinutes int       `json:"weekday_minutes"`
	WeekendMinutes int       `json:"weekend_minutes"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SessionStatus is the stored state of a session. Running and paused are
// mutually exclusive by construction; "expired" is a derived condition
// (elapsed >= effective limit) and is never stored.
type SessionStatus string

const (
	StatusIdle    SessionStatus = "idle"
	StatusRunning SessionStatus = "running"
	StatusPaused  SessionStatus = "paused"
)

// Session records one timer's usage on one calendar date.
type Session struct {
	TimerID        string        `json:"timer_id"`
	Date           string        `json:"date"` // YYYY-MM-DD in the household timezone
	Status         SessionStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at,omitempty"` // zero unless Status == running
	ElapsedSeconds int64         `json:"elapsed_seconds"`
	BonusSeconds   int64         `json:"bonus_seconds"`
	WarningSent    bool          `json:"warning_sent"`
	ExpiredSent    bool          `json:"expired_sent"`

	// Version increments on every write; backends use it for optimistic
	// concurrency so two near-simultaneous mutations cannot both apply the
	// same elapsed delta.
	Version int64 `json:"version"`
}

// Running reports whether the session clock is ticking.
func (s *Session) Running() bool { return s.Status == StatusRunning }

// Paused reports whether the session is paused.
func (s *Session) Paused() bool { return s.Status == StatusPaused }

// AuditAction identifies the kind of timer audit event.
type AuditAction string

const (
	AuditCreated      AuditAction = "created"
	AuditModified     AuditAction = "modified"
	AuditDeleted      AuditAction = "deleted"
	AuditBonusGranted AuditAction = "bonus_granted"
	AuditStartBlocked AuditAction = "start_blocked"
)

// AuditEntry is an append-only record of a timer configuration or
// enforcement event. Entries are never mutated or deleted except by
// retention cleanup.
type AuditEntry struct {
	ID        string      `json:"id"`
	TimerID   string      `json:"timer_id"`
	ActorID   string      `json:"actor_id"`
	Action    AuditAction `json:"action"`
	Detail    string      `json:"detail"`
	Timestamp time.Time   `json:"timestamp"`
}
