package cache

import "time"

// Clock is the time source for expiry and for the purge schedule.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the part of *time.Ticker the purge loop needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock reads the wall clock. time.Now carries a monotonic reading,
// so expiry comparisons are immune to wall-clock jumps.
type SystemClock struct{}

var _ Clock = SystemClock{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
