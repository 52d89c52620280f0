// Package clock wraps the time operations the leave engine depends on so
// tests can drive expiry deterministically.
package clock

import "time"

// Clock is the time source for the engine. Production code uses Real();
// tests use Fake().
type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine once d has elapsed and
	// returns a Timer that can cancel the pending call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is the cancellation handle for a callback scheduled with AfterFunc.
type Timer struct {
	stop func() bool
}

// Stop prevents the callback from running. It reports false when the
// callback has already started (or finished) or the timer was stopped
// before. Stopping a nil Timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}
