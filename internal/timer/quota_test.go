package timer

import (
	"testing"
	"time"

	"github.com/goodtune/screentime/internal/storage"
)

func TestEffectiveLimitSeconds(t *testing.T) {
	timer := storage.Timer{WeekdayMinutes: 60, WeekendMinutes: 120}

	tests := []struct {
		name    string
		date    time.Time
		session *storage.Session
		want    int64
	}{
		{
			name: "wednesday uses weekday limit",
			date: time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC),
			want: 3600,
		},
		{
			name: "friday uses weekday limit",
			date: time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC),
			want: 3600,
		},
		{
			name: "saturday uses weekend limit",
			date: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
			want: 7200,
		},
		{
			name: "sunday uses weekend limit",
			date: time.Date(2026, 1, 11, 12, 0, 0, 0, time.UTC),
			want: 7200,
		},
		{
			name:    "bonus extends the weekday limit",
			date:    time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC),
			session: &storage.Session{BonusSeconds: 900},
			want:    4500,
		},
		{
			name:    "bonus extends the weekend limit",
			date:    time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
			session: &storage.Session{BonusSeconds: 900},
			want:    8100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveLimitSeconds(timer, tt.session, tt.date)
			if got != tt.want {
				t.Fatalf("expected limit %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRemainingSeconds(t *testing.T) {
	timer := storage.Timer{WeekdayMinutes: 60, WeekendMinutes: 120}
	wednesday := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session *storage.Session
		want    int64
	}{
		{
			name: "no session yet",
			want: 3600,
		},
		{
			name:    "partially used",
			session: &storage.Session{ElapsedSeconds: 3000},
			want:    600,
		},
		{
			name:    "over the limit goes negative",
			session: &storage.Session{ElapsedSeconds: 4000},
			want:    -400,
		},
		{
			name:    "bonus restores remaining time",
			session: &storage.Session{ElapsedSeconds: 3600, BonusSeconds: 1800},
			want:    1800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemainingSeconds(timer, tt.session, wednesday)
			if got != tt.want {
				t.Fatalf("expected remaining %d, got %d", tt.want, got)
			}
		})
	}
}
