package timer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/screentime/internal/storage"
	"github.com/rs/zerolog"
)

// Admin is the quota and configuration mutation path. Callers are assumed
// to be verified administrators; adminID is recorded for the audit trail
// only. Quota changes take effect against live sessions immediately.
type Admin struct {
	store  storage.Store
	clock  Clock
	logger zerolog.Logger
}

// NewAdmin creates a new admin override service.
func NewAdmin(store storage.Store, clock Clock, logger zerolog.Logger) *Admin {
	return &Admin{
		store:  store,
		clock:  clock,
		logger: logger.With().Str("component", "admin").Logger(),
	}
}

// TimerParams carries the mutable timer configuration.
type TimerParams struct {
	UserID         string           `json:"user_id"`
	Name           string           `json:"name"`
	Category       storage.Category `json:"category"`
	WeekdayMinutes int              `json:"weekday_minutes"`
	WeekendMinutes int              `json:"weekend_minutes"`
}

func (p TimerParams) validate() error {
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch p.Category {
	case storage.CategoryComputer, storage.CategoryPhone, storage.CategoryTablet, storage.CategoryConsole, storage.CategoryTV:
	default:
		return fmt.Errorf("invalid category: %s", p.Category)
	}
	if p.WeekdayMinutes < 0 || p.WeekendMinutes < 0 {
		return fmt.Errorf("limits must be non-negative")
	}
	return nil
}

// CreateTimer inserts a new timer.
func (a *Admin) CreateTimer(ctx context.Context, params TimerParams, adminID string) (*storage.Timer, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	id, err := newTimerID()
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()
	timer := storage.Timer{
		ID:             id,
		UserID:         params.UserID,
		Name:           params.Name,
		Category:       params.Category,
		WeekdayMinutes: params.WeekdayMinutes,
		WeekendMinutes: params.WeekendMinutes,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := a.store.Timers().Upsert(ctx, timer); err != nil {
		return nil, fmt.Errorf("insert timer: %w", err)
	}

	a.audit(ctx, timer.ID, adminID, storage.AuditCreated,
		fmt.Sprintf("created %q (%s) weekday=%dm weekend=%dm for user %s",
			timer.Name, timer.Category, timer.WeekdayMinutes, timer.WeekendMinutes, timer.UserID))

	a.logger.Info().Str("timer_id", timer.ID).Str("admin_id", adminID).Msg("Timer created")
	return &timer, nil
}

// UpdateTimer mutates a timer's name, category, and limits. A quota
// reduction cuts off an in-progress session immediately rather than
// waiting for the next sweep.
func (a *Admin) UpdateTimer(ctx context.Context, id string, params TimerParams, adminID string) (*storage.Timer, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	timer, err := a.store.Timers().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := fmt.Sprintf("weekday=%dm weekend=%dm", timer.WeekdayMinutes, timer.WeekendMinutes)

	timer.UserID = params.UserID
	timer.Name = params.Name
	timer.Category = params.Category
	timer.WeekdayMinutes = params.WeekdayMinutes
	timer.WeekendMinutes = params.WeekendMinutes
	timer.UpdatedAt = a.clock.Now()

	if err := a.store.Timers().Upsert(ctx, *timer); err != nil {
		return nil, fmt.Errorf("update timer: %w", err)
	}

	a.audit(ctx, timer.ID, adminID, storage.AuditModified,
		fmt.Sprintf("modified %q: %s -> weekday=%dm weekend=%dm",
			timer.Name, before, timer.WeekdayMinutes, timer.WeekendMinutes))

	if err := a.enforceReducedLimit(ctx, timer); err != nil {
		a.logger.Error().Err(err).Str("timer_id", timer.ID).Msg("Failed to enforce reduced limit")
	}

	a.logger.Info().Str("timer_id", timer.ID).Str("admin_id", adminID).Msg("Timer updated")
	return timer, nil
}

// enforceReducedLimit force-stops today's session when its banked time
// already exceeds the new effective limit.
func (a *Admin) enforceReducedLimit(ctx context.Context, timer *storage.Timer) error {
	now := a.clock.Now()
	date := now.Format(storage.DateFormat)

	sess, err := a.store.Sessions().Get(ctx, timer.ID, date)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sess.Running() {
		return nil
	}

	limit := EffectiveLimitSeconds(*timer, sess, now)

	_, err = a.store.Sessions().Mutate(ctx, timer.ID, date, func(sess *storage.Session) error {
		if !sess.Running() {
			return errNotRunning
		}
		accrue(sess, now)
		if sess.ElapsedSeconds < limit {
			// The session accrued against the new limit is still within
			// quota; leave it running without banking the accrual twice.
			return errNotRunning
		}
		sess.Status = storage.StatusIdle
		sess.StartedAt = time.Time{}
		return nil
	})
	if errors.Is(err, errNotRunning) {
		return nil
	}
	if err != nil {
		return err
	}

	a.logger.Info().Str("timer_id", timer.ID).Msg("Running session force-stopped by quota reduction")
	return nil
}

// DeleteTimer soft-deletes a timer. Sessions for the date are left
// untouched to preserve the historical record.
func (a *Admin) DeleteTimer(ctx context.Context, id, adminID string) error {
	timer, err := a.store.Timers().Get(ctx, id)
	if err != nil {
		return err
	}

	timer.Active = false
	timer.UpdatedAt = a.clock.Now()

	if err := a.store.Timers().Upsert(ctx, *timer); err != nil {
		return fmt.Errorf("delete timer: %w", err)
	}

	a.audit(ctx, timer.ID, adminID, storage.AuditDeleted, fmt.Sprintf("deleted %q", timer.Name))

	a.logger.Info().Str("timer_id", timer.ID).Str("admin_id", adminID).Msg("Timer deleted")
	return nil
}

// GrantBonus extends today's quota by the given minutes. The bonus is
// additive and applies to today only; because the effective limit is
// recomputed live, an expired session becomes startable again immediately.
func (a *Admin) GrantBonus(ctx context.Context, id string, minutes int, adminID string) error {
	if minutes <= 0 {
		return fmt.Errorf("bonus minutes must be positive")
	}

	timer, err := a.store.Timers().Get(ctx, id)
	if err != nil {
		return err
	}

	date := a.clock.Now().Format(storage.DateFormat)

	_, err = a.store.Sessions().Mutate(ctx, id, date, func(sess *storage.Session) error {
		sess.BonusSeconds += int64(minutes) * 60
		return nil
	})
	if err != nil {
		return fmt.Errorf("grant bonus: %w", err)
	}

	a.audit(ctx, timer.ID, adminID, storage.AuditBonusGranted,
		fmt.Sprintf("granted %d bonus minutes for %s", minutes, date))

	a.logger.Info().
		Str("timer_id", timer.ID).
		Str("admin_id", adminID).
		Int("minutes", minutes).
		Msg("Bonus granted")
	return nil
}

// AuditTrail returns the newest audit entries for a timer.
func (a *Admin) AuditTrail(ctx context.Context, timerID string, limit int) ([]storage.AuditEntry, error) {
	return a.store.Audit().ListByTimer(ctx, timerID, limit)
}

func (a *Admin) audit(ctx context.Context, timerID, actorID string, action storage.AuditAction, detail string) {
	entry := storage.AuditEntry{
		TimerID:   timerID,
		ActorID:   actorID,
		Action:    action,
		Detail:    detail,
		Timestamp: a.clock.Now(),
	}
	if err := a.store.Audit().Append(ctx, entry); err != nil {
		a.logger.Error().Err(err).Str("timer_id", timerID).Msg("Failed to append audit entry")
	}
}

func newTimerID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate timer id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
