package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/screentime/internal/storage"
)

// parseSession converts a Redis hash to a Session
func parseSession(data map[string]string) (*storage.Session, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	elapsed, err := strconv.ParseInt(data["elapsed_seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse elapsed_seconds: %w", err)
	}

	bonus, err := strconv.ParseInt(data["bonus_seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bonus_seconds: %w", err)
	}

	version, err := strconv.ParseInt(data["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version: %w", err)
	}

	warningSent, err := strconv.ParseBool(data["warning_sent"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse warning_sent: %w", err)
	}

	expiredSent, err := strconv.ParseBool(data["expired_sent"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse expired_sent: %w", err)
	}

	var startedAt time.Time
	if data["started_at"] != "" {
		startedAt, err = time.Parse(time.RFC3339Nano, data["started_at"])
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
	}

	return &storage.Session{
		TimerID:        data["timer_id"],
		Date:           data["date"],
		Status:         storage.SessionStatus(data["status"]),
		StartedAt:      startedAt,
		ElapsedSeconds: elapsed,
		BonusSeconds:   bonus,
		WarningSent:    warningSent,
		ExpiredSent:    expiredSent,
		Version:        version,
	}, nil
}

// parseTimer converts a Redis hash to a Timer
func parseTimer(data map[string]string) (*storage.Timer, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	weekday, err := strconv.Atoi(data["weekday_minutes"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse weekday_minutes: %w", err)
	}

	weekend, err := strconv.Atoi(data["weekend_minutes"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse weekend_minutes: %w", err)
	}

	active, err := strconv.ParseBool(data["active"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse active: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &storage.Timer{
		ID:             data["id"],
		UserID:         data["user_id"],
		Name:           data["name"],
		Category:       storage.Category(data["category"]),
		WeekdayMinutes: weekday,
		WeekendMinutes: weekend,
		Active:         active,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
