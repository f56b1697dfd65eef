// ABOUTME: Monotonic nanosecond clock from the Go runtime
// ABOUTME: Used where the platform clock is unavailable
package timing

import "time"

// processStart anchors the fallback clock; +1 keeps the first reading non-zero
var processStart = time.Now()

func fallbackNow() HostTicks {
	return HostTicks(time.Since(processStart).Nanoseconds() + 1)
}
