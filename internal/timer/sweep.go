package timer

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screentime/internal/metrics"
	"github.com/goodtune/screentime/internal/notify"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultWarningThreshold is the remaining-time level at which the warning
// notification fires, regardless of the timer's total limit.
const DefaultWarningThreshold = 10 * time.Minute

// SweepConfig holds sweeper configuration.
type SweepConfig struct {
	WarningThreshold time.Duration
	AdminUserIDs     []string
	AuditRetention   time.Duration
}

// Sweeper is the periodic reconciliation pass: it accrues elapsed time on
// every running session for today, evaluates the warning and expiry
// thresholds, and hands due notifications to the notifier. Each session is
// its own atomic unit; a sweep killed mid-run leaves the remainder for the
// next invocation.
type Sweeper struct {
	store    storage.Store
	clock    Clock
	notifier notify.Notifier
	config   SweepConfig
	logger   zerolog.Logger
}

// NewSweeper creates a new maintenance sweeper.
func NewSweeper(store storage.Store, clock Clock, notifier notify.Notifier, config SweepConfig, logger zerolog.Logger) *Sweeper {
	if config.WarningThreshold == 0 {
		config.WarningThreshold = DefaultWarningThreshold
	}

	return &Sweeper{
		store:    store,
		clock:    clock,
		notifier: notifier,
		config:   config,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// SweepResult reports what a single pass did.
type SweepResult struct {
	Cleaned int `json:"cleaned"`
	Updated int `json:"updated"`
	Warned  int `json:"warned"`
	Expired int `json:"expired"`
}

// Run executes one maintenance pass. Retention cleanup goes first so
// accrual never touches a session that is about to be purged; session
// processing failures are isolated per session and never abort the pass.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	metrics.SweepRunsTotal.Inc()

	now := s.clock.Now()
	today := now.Format(storage.DateFormat)

	var result SweepResult

	cleaned, err := s.store.Sessions().DeleteBefore(ctx, today)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to clean up old sessions")
	} else {
		result.Cleaned = cleaned
	}

	if s.config.AuditRetention > 0 {
		cutoff := now.Add(-s.config.AuditRetention)
		if _, err := s.store.Audit().DeleteBefore(ctx, cutoff); err != nil {
			s.logger.Error().Err(err).Msg("Failed to clean up old audit entries")
		}
	}

	running, err := s.store.Sessions().ListRunning(ctx, today)
	if err != nil {
		return result, fmt.Errorf("list running sessions: %w", err)
	}

	for _, sess := range running {
		if err := s.processSession(ctx, sess.TimerID, today, now, &result); err != nil {
			metrics.SweepSessionFailures.Inc()
			s.logger.Error().
				Err(err).
				Str("timer_id", sess.TimerID).
				Msg("Sweep failed for session, continuing")
		}
	}

	metrics.SessionsRunning.Set(float64(len(running) - result.Expired))

	s.logger.Info().
		Int("cleaned", result.Cleaned).
		Int("updated", result.Updated).
		Int("warned", result.Warned).
		Int("expired", result.Expired).
		Msg("Sweep complete")

	return result, nil
}

func (s *Sweeper) processSession(ctx context.Context, timerID, date string, now time.Time, result *SweepResult) error {
	timer, err := s.store.Timers().Get(ctx, timerID)
	if err != nil {
		return fmt.Errorf("load timer: %w", err)
	}

	var accrued int64
	sess, err := s.store.Sessions().Mutate(ctx, timerID, date, func(sess *storage.Session) error {
		accrued = accrue(sess, now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("accrue elapsed time: %w", err)
	}
	result.Updated++

	if accrued > 0 {
		metrics.UsageSecondsAccrued.WithLabelValues(string(timer.Category)).Add(float64(accrued))
	}

	limit := EffectiveLimitSeconds(*timer, sess, now)
	remaining := limit - sess.ElapsedSeconds

	if !sess.WarningSent && remaining > 0 && remaining <= int64(s.config.WarningThreshold.Seconds()) {
		if err := s.sendWarning(ctx, timer, sess, remaining, result); err != nil {
			return err
		}
	}

	if !sess.ExpiredSent && sess.ElapsedSeconds >= limit {
		if err := s.sendExpiry(ctx, timer, now, result); err != nil {
			return err
		}
	}

	return nil
}

func (s *Sweeper) sendWarning(ctx context.Context, timer *storage.Timer, sess *storage.Session, remaining int64, result *SweepResult) error {
	message := fmt.Sprintf("%s: %d minutes of screen time remaining today", timer.Name, remaining/60)
	delivered := s.dispatch(ctx, "warning", timer.UserID, "Screen time warning", message)
	if !delivered {
		// Flag stays false; the next sweep retries.
		return nil
	}

	// Set the flag only if another writer has not beaten us to it, so two
	// concurrent sweeps record at most one warning.
	claimed := false
	_, err := s.store.Sessions().Mutate(ctx, timer.ID, sess.Date, func(sess *storage.Session) error {
		if !sess.WarningSent {
			sess.WarningSent = true
			claimed = true
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record warning: %w", err)
	}
	if claimed {
		result.Warned++
		s.logger.Info().
			Str("timer_id", timer.ID).
			Int64("remaining_seconds", remaining).
			Msg("Warning notification sent")
	}
	return nil
}

func (s *Sweeper) sendExpiry(ctx context.Context, timer *storage.Timer, now time.Time, result *SweepResult) error {
	message := fmt.Sprintf("%s: daily screen time limit reached", timer.Name)

	delivered := s.dispatch(ctx, "expiry", timer.UserID, "Screen time expired", message)
	for _, adminID := range s.config.AdminUserIDs {
		if !s.dispatch(ctx, "expiry", adminID, "Screen time expired", message) {
			delivered = false
		}
	}

	// Expiry always stops the clock, whether or not dispatch succeeded;
	// the flag is only recorded on confirmed delivery.
	claimed := false
	_, err := s.store.Sessions().Mutate(ctx, timer.ID, now.Format(storage.DateFormat), func(sess *storage.Session) error {
		if sess.Running() {
			accrue(sess, now)
			sess.Status = storage.StatusIdle
			sess.StartedAt = time.Time{}
		}
		if delivered && !sess.ExpiredSent {
			sess.ExpiredSent = true
			claimed = true
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record expiry: %w", err)
	}
	if claimed {
		result.Expired++
	}

	s.logger.Info().
		Str("timer_id", timer.ID).
		Str("user_id", timer.UserID).
		Bool("notified", delivered).
		Msg("Session expired, clock stopped")
	return nil
}

func (s *Sweeper) dispatch(ctx context.Context, kind, userID, subject, message string) bool {
	if err := s.notifier.Notify(ctx, userID, subject, message); err != nil {
		metrics.NotificationsTotal.WithLabelValues(kind, "failed").Inc()
		s.logger.Error().
			Err(err).
			Str("kind", kind).
			Str("user_id", userID).
			Msg("Notification dispatch failed")
		return false
	}
	metrics.NotificationsTotal.WithLabelValues(kind, "sent").Inc()
	return true
}

// Scheduler drives the sweeper on a fixed interval.
type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
	logger   zerolog.Logger
	stopChan chan struct{}
}

// NewScheduler creates a new sweep scheduler.
func NewScheduler(sweeper *Sweeper, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With().Str("component", "sweep-scheduler").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	go s.run()
	s.logger.Info().Dur("interval", s.interval).Msg("Sweep scheduler started")
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.logger.Info().Msg("Sweep scheduler stopped")
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if _, err := s.sweeper.Run(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled sweep failed")
			}
			cancel()
		case <-s.stopChan:
			return
		}
	}
}
