// ABOUTME: Cached host clock timebase and tick/second conversion
// ABOUTME: Resolves the monotonic clock rate once per process
package timing

import (
	"math"
	"sync"
)

// HostTicks is a raw monotonic clock reading
type HostTicks uint64

var (
	initOnce sync.Once

	// ticksPerSecond is written once under initOnce and read-only afterwards
	ticksPerSecond float64
)

// Init resolves the host clock rate. It is safe to call any number of times
// from any goroutine.
func Init() {
	initOnce.Do(func() {
		ticksPerSecond = hostTicksPerSecond()
		if ticksPerSecond <= 0 || math.IsNaN(ticksPerSecond) {
			ticksPerSecond = 1e9
		}
	})
}

// TicksPerSecond returns the host clock rate
func TicksPerSecond() float64 {
	Init()
	return ticksPerSecond
}

// Now returns the current host time in ticks
func Now() HostTicks {
	Init()
	return hostNow()
}

// NowSeconds returns the current host time in seconds
func NowSeconds() float64 {
	return SecondsFromTicks(Now())
}

// TicksFromSeconds converts seconds to host ticks, rounding to the nearest
// tick. Negative input yields zero.
func TicksFromSeconds(seconds float64) HostTicks {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return HostTicks(math.Round(seconds * TicksPerSecond()))
}

// SecondsFromTicks converts host ticks to seconds
func SecondsFromTicks(ticks HostTicks) float64 {
	return float64(ticks) / TicksPerSecond()
}
