package timer

import "time"

// Clock provides the household's wall-clock time.
// This interface allows time to be mocked in tests.
type Clock interface {
	Now() time.Time
}

// RealClock provides actual system time in the household timezone.
type RealClock struct {
	Location *time.Location
}

// Now returns the current time in the household timezone.
func (c RealClock) Now() time.Time {
	return time.Now().In(c.Location)
}

// TestClock provides fixed time for testing.
type TestClock struct {
	CurrentTime time.Time
}

// Now returns the test time.
func (t *TestClock) Now() time.Time {
	return t.CurrentTime
}

// Advance moves the test clock forward.
func (t *TestClock) Advance(d time.Duration) {
	t.CurrentTime = t.CurrentTime.Add(d)
}
