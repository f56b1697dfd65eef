//go:build linux

// ABOUTME: Linux host clock backed by CLOCK_MONOTONIC
// ABOUTME: Ticks are counted in units of the clock resolution
package timing

import "golang.org/x/sys/unix"

var resolutionNanos int64 = 1

func hostTicksPerSecond() float64 {
	var res unix.Timespec
	if err := unix.ClockGetres(unix.CLOCK_MONOTONIC, &res); err == nil && res.Nano() > 0 {
		resolutionNanos = res.Nano()
	}
	return 1e9 / float64(resolutionNanos)
}

func hostNow() HostTicks {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallbackNow() / HostTicks(resolutionNanos)
	}
	return HostTicks(ts.Nano() / resolutionNanos)
}
