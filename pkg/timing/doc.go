// ABOUTME: Host clock and timestamp conversions
// ABOUTME: Package documentation for the timing utility
// Package timing converts between monotonic host clock ticks, seconds and
// sample-position timestamps.
//
// The tick rate is read from the platform once and cached. Call Init at
// startup; every conversion also initialises on first use.
//
//	timing.Init()
//	start := timing.Now()
//	...
//	elapsed := timing.SecondsFromTicks(timing.Now() - start)
package timing
