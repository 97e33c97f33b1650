package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StartsAtEpoch(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock(time.Time{})

	clock.Advance(time.Second)
	clock.Advance(500 * time.Millisecond)

	assert.Equal(t, Epoch.Add(1500*time.Millisecond), clock.Now())
	// Reading does not move the clock.
	assert.Equal(t, clock.Now(), clock.Now())
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	later := Epoch.Add(time.Hour)

	clock.Set(later)

	assert.Equal(t, later, clock.Now())
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(numGoroutines*time.Millisecond), clock.Now())
}

func TestStepClock_AdvancesPerRead(t *testing.T) {
	clock := NewStepClock(10 * time.Millisecond)

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(10*time.Millisecond), clock.Now())
	assert.Equal(t, Epoch.Add(20*time.Millisecond), clock.Now())
}
