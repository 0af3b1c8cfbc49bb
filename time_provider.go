package coalesce

import (
	"time"

	"github.com/romshark/coalesce/clock"
)

type Timer interface {
	Stop() bool
	Reset(Duration) bool
}

type TimeProvider interface {
	Now() clock.Tick
	AfterFunc(Duration, func()) Timer
}

type timeProvider struct{}

func (p timeProvider) Now() clock.Tick {
	return clock.Now()
}

func (p timeProvider) AfterFunc(d Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
