package timer

import (
	"time"

	"github.com/goodtune/screentime/internal/storage"
)

// EffectiveLimitSeconds returns the fully-resolved daily quota for a timer
// on a given date: the weekday or weekend base plus any bonus granted for
// that date. Saturday and Sunday count as weekend. Pure, never fails.
//
// session may be nil when no session exists yet for the date (bonus 0).
func EffectiveLimitSeconds(timer storage.Timer, session *storage.Session, date time.Time) int64 {
	minutes := timer.WeekdayMinutes
	if isWeekend(date) {
		minutes = timer.WeekendMinutes
	}

	limit := int64(minutes) * 60
	if session != nil {
		limit += session.BonusSeconds
	}
	return limit
}

// RemainingSeconds returns the raw remaining quota, which goes negative
// when elapsed time exceeds the current limit (e.g. after an admin quota
// reduction). Display paths clamp at zero.
func RemainingSeconds(timer storage.Timer, session *storage.Session, date time.Time) int64 {
	limit := EffectiveLimitSeconds(timer, session, date)
	if session == nil {
		return limit
	}
	return limit - session.ElapsedSeconds
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
