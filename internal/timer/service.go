package timer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/screentime/internal/metrics"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/rs/zerolog"
)

// Failure reasons surfaced to callers. Permission and transition failures
// are values, not errors.
const (
	ReasonExpired    = "time expired"
	ReasonPaused     = "paused"
	ReasonNotOwner   = "permission denied"
	ReasonInactive   = "timer disabled"
	ReasonNotFound   = "timer not found"
	ReasonNotRunning = "not running"
)

// Sentinels used to abort a Mutate without writing.
var (
	errBlockedExpired = errors.New("start blocked: time expired")
	errBlockedPaused  = errors.New("start blocked: paused")
	errNotRunning     = errors.New("session not running")
)

// Service implements the session state machine: start/stop/pause
// transitions and status reads. Every mutation goes through a single
// SessionStore.Mutate so concurrent callers never double-count an
// interval. No state is cached across calls.
type Service struct {
	store  storage.Store
	clock  Clock
	logger zerolog.Logger
}

// NewService creates a new session state machine service.
func NewService(store storage.Store, clock Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		clock:  clock,
		logger: logger.With().Str("component", "timer").Logger(),
	}
}

// StartResult reports the outcome of a start attempt.
type StartResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// ToggleResult reports the outcome of a pause toggle.
type ToggleResult struct {
	OK        bool `json:"ok"`
	NowPaused bool `json:"now_paused"`
}

// TimerView is a timer with its computed usage state for today.
type TimerView struct {
	Timer            storage.Timer         `json:"timer"`
	Date             string                `json:"date"`
	Status           storage.SessionStatus `json:"status"`
	ElapsedSeconds   int64                 `json:"elapsed_seconds"`
	LimitSeconds     int64                 `json:"limit_seconds"`
	RemainingSeconds int64                 `json:"remaining_seconds"`
	Color            string                `json:"color"`
}

// Start begins accruing time on a timer. The session for today is created
// lazily. The start is refused when the session is paused or the quota is
// spent; only the refusal is audit-logged, since polling clients retry
// starts frequently.
func (s *Service) Start(ctx context.Context, timerID, userID string) (StartResult, error) {
	timer, res, err := s.authorize(ctx, timerID, userID)
	if err != nil || res.Reason != "" {
		return res, err
	}

	now := s.clock.Now()
	date := now.Format(storage.DateFormat)

	_, err = s.store.Sessions().Mutate(ctx, timerID, date, func(sess *storage.Session) error {
		if sess.Paused() {
			return errBlockedPaused
		}
		if RemainingSeconds(*timer, sess, now) <= 0 {
			return errBlockedExpired
		}
		if sess.Running() {
			// Poll-driven repeat start; keep the interval intact.
			return nil
		}
		sess.Status = storage.StatusRunning
		sess.StartedAt = now
		return nil
	})

	switch {
	case errors.Is(err, errBlockedPaused):
		s.recordBlockedStart(ctx, timerID, userID, ReasonPaused, now)
		return StartResult{Reason: ReasonPaused}, nil
	case errors.Is(err, errBlockedExpired):
		s.recordBlockedStart(ctx, timerID, userID, ReasonExpired, now)
		return StartResult{Reason: ReasonExpired}, nil
	case err != nil:
		return StartResult{}, err
	}

	s.logger.Debug().Str("timer_id", timerID).Str("user_id", userID).Msg("Session started")
	return StartResult{OK: true}, nil
}

// Stop halts accrual and banks the elapsed wall-clock time since the
// session started. Stopping a session that is not running is a no-op
// failure.
func (s *Service) Stop(ctx context.Context, timerID, userID string) (StartResult, error) {
	_, res, err := s.authorize(ctx, timerID, userID)
	if err != nil || res.Reason != "" {
		return res, err
	}

	now := s.clock.Now()
	date := now.Format(storage.DateFormat)

	sess, err := s.store.Sessions().Mutate(ctx, timerID, date, func(sess *storage.Session) error {
		if !sess.Running() {
			return errNotRunning
		}
		accrue(sess, now)
		sess.Status = storage.StatusIdle
		sess.StartedAt = time.Time{}
		return nil
	})

	if errors.Is(err, errNotRunning) {
		return StartResult{Reason: ReasonNotRunning}, nil
	}
	if err != nil {
		return StartResult{}, err
	}

	s.logger.Debug().
		Str("timer_id", timerID).
		Str("user_id", userID).
		Int64("elapsed_seconds", sess.ElapsedSeconds).
		Msg("Session stopped")
	return StartResult{OK: true}, nil
}

// TogglePause flips the paused state. Unpausing resumes the clock in the
// same atomic transition; pausing a running session banks its elapsed time
// first.
func (s *Service) TogglePause(ctx context.Context, timerID, userID string) (ToggleResult, error) {
	_, res, err := s.authorize(ctx, timerID, userID)
	if err != nil {
		return ToggleResult{}, err
	}
	if res.Reason != "" {
		return ToggleResult{}, nil
	}

	now := s.clock.Now()
	date := now.Format(storage.DateFormat)

	var nowPaused bool
	_, err = s.store.Sessions().Mutate(ctx, timerID, date, func(sess *storage.Session) error {
		switch {
		case sess.Paused():
			sess.Status = storage.StatusRunning
			sess.StartedAt = now
			nowPaused = false
		case sess.Running():
			accrue(sess, now)
			sess.Status = storage.StatusPaused
			sess.StartedAt = time.Time{}
			nowPaused = true
		default:
			sess.Status = storage.StatusPaused
			nowPaused = true
		}
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}

	s.logger.Debug().
		Str("timer_id", timerID).
		Str("user_id", userID).
		Bool("now_paused", nowPaused).
		Msg("Session pause toggled")
	return ToggleResult{OK: true, NowPaused: nowPaused}, nil
}

// GetUserTimers returns the user's active timers with today's usage,
// including live accrual for running sessions and the dashboard status
// color (red at or past the limit, yellow from 80% used, green otherwise).
func (s *Service) GetUserTimers(ctx context.Context, userID string) ([]TimerView, error) {
	timers, err := s.store.Timers().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	date := now.Format(storage.DateFormat)

	views := make([]TimerView, 0, len(timers))
	for _, timer := range timers {
		if !timer.Active {
			continue
		}

		sess, err := s.store.Sessions().Get(ctx, timer.ID, date)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		view := TimerView{
			Timer:  timer,
			Date:   date,
			Status: storage.StatusIdle,
		}

		limit := EffectiveLimitSeconds(timer, sess, now)
		elapsed := int64(0)
		if sess != nil {
			view.Status = sess.Status
			elapsed = sess.ElapsedSeconds
			if sess.Running() && !sess.StartedAt.IsZero() {
				live := int64(now.Sub(sess.StartedAt).Seconds())
				if live > 0 {
					elapsed += live
				}
			}
		}

		view.ElapsedSeconds = elapsed
		view.LimitSeconds = limit
		view.RemainingSeconds = limit - elapsed
		if view.RemainingSeconds < 0 {
			view.RemainingSeconds = 0
		}
		view.Color = statusColor(elapsed, limit)

		views = append(views, view)
	}

	return views, nil
}

// authorize resolves the timer and checks ownership. A non-empty Reason in
// the result means the operation must not proceed.
func (s *Service) authorize(ctx context.Context, timerID, userID string) (*storage.Timer, StartResult, error) {
	timer, err := s.store.Timers().Get(ctx, timerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, StartResult{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return nil, StartResult{}, err
	}
	if timer.UserID != userID {
		return nil, StartResult{Reason: ReasonNotOwner}, nil
	}
	if !timer.Active {
		return nil, StartResult{Reason: ReasonInactive}, nil
	}
	return timer, StartResult{}, nil
}

func (s *Service) recordBlockedStart(ctx context.Context, timerID, userID, reason string, now time.Time) {
	metrics.StartsBlocked.WithLabelValues(reason).Inc()

	entry := storage.AuditEntry{
		TimerID:   timerID,
		ActorID:   userID,
		Action:    storage.AuditStartBlocked,
		Detail:    fmt.Sprintf("start blocked: %s", reason),
		Timestamp: now,
	}
	if err := s.store.Audit().Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("timer_id", timerID).Msg("Failed to append audit entry")
	}

	s.logger.Info().
		Str("timer_id", timerID).
		Str("user_id", userID).
		Str("reason", reason).
		Msg("Start blocked")
}

// accrue folds the wall-clock time since StartedAt into ElapsedSeconds and
// restarts the interval at now, so repeated accruals never double-count.
func accrue(sess *storage.Session, now time.Time) int64 {
	if !sess.Running() || sess.StartedAt.IsZero() {
		return 0
	}
	delta := int64(now.Sub(sess.StartedAt).Seconds())
	if delta < 0 {
		delta = 0
	}
	sess.ElapsedSeconds += delta
	sess.StartedAt = now
	return delta
}

func statusColor(elapsed, limit int64) string {
	switch {
	case elapsed >= limit:
		return "red"
	case limit > 0 && elapsed*5 >= limit*4:
		return "yellow"
	default:
		return "green"
	}
}
