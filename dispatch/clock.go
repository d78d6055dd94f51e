package dispatch

import "time"

// Clock is the time source of the scheduler. Tests substitute a manual
// clock to drive debounce, cooldown and periodic timers deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback. Stop must be safe to call more
// than once.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}
