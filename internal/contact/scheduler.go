package contact

import "time"

// Timer is a pending scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already started or was already stopped.
	Stop() bool
}

// Scheduler runs f on its own goroutine once d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

// ClockScheduler schedules against the runtime clock.
func ClockScheduler() Scheduler { return clockScheduler{} }

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
