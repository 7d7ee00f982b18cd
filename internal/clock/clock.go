// Package clock abstracts time so that every time-dependent unit in the
// pipeline — window closes, lateness, cooldowns, retry backoff — can be
// driven deterministically from tests.
package clock

import "time"

// Clock provides the current time and sleep, injectable for tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Real returns the system clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time      { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// NowMs returns the clock's current time as epoch milliseconds.
func NowMs(c Clock) int64 {
	return c.Now().UnixMilli()
}
