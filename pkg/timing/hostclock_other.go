//go:build !linux

// ABOUTME: Portable host clock using the runtime monotonic clock
// ABOUTME: Ticks are nanoseconds since process start
package timing

func hostTicksPerSecond() float64 {
	return 1e9
}

func hostNow() HostTicks {
	return fallbackNow()
}
