package coalesce

import "github.com/romshark/coalesce/clock"

// alarm is a single reusable one-shot timer.
// The underlying Timer is allocated on the first arm
// and reset on every following one.
type alarm struct {
	provider TimeProvider
	fn       func()
	timer    Timer
	armed    bool
	deadline clock.Tick
}

// arm schedules fn to run once after d replacing any earlier schedule.
func (a *alarm) arm(now clock.Tick, d Duration) {
	a.deadline = now.Add(d)
	a.armed = true
	if a.timer == nil {
		a.timer = a.provider.AfterFunc(d, a.fn)
		return
	}
	a.timer.Reset(d)
}

// disarm cancels the pending schedule if any.
func (a *alarm) disarm() {
	if !a.armed {
		return
	}
	a.armed = false
	a.timer.Stop()
}
