package engine

import "time"

// Clock supplies the wall time used for the evaluation timeout.
// Tests substitute testutil.FakeClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
