package sequencer

import "time"

// DeviceClock is the monotonic clock notes are stamped against
type DeviceClock interface {
	Now() float64 // seconds
}

// NoteSink receives scheduled notes. start is an absolute DeviceClock time.
// Implementations must not block and must not call back into the Scheduler.
type NoteSink interface {
	ScheduleNote(freq, start, duration float64)
}

// NoteSinkFunc adapts a function to NoteSink
type NoteSinkFunc func(freq, start, duration float64)

func (f NoteSinkFunc) ScheduleNote(freq, start, duration float64) {
	f(freq, start, duration)
}

// SystemClock counts seconds since it was created, on Go's monotonic clock
type SystemClock struct {
	t0 time.Time
}

// NewSystemClock creates a clock whose epoch is now
func NewSystemClock() *SystemClock {
	return &SystemClock{t0: time.Now()}
}

func (c *SystemClock) Now() float64 {
	return time.Since(c.t0).Seconds()
}

// afterFunc arms a one-shot callback and returns its cancel handle
type afterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
