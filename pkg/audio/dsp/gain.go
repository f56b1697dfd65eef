// ABOUTME: Constant gain and linear ramp over buffer sets
// ABOUTME: In-place, allocation-free operations on float64 channels
package dsp

import "github.com/Sendspin/offline-render/pkg/audio/bufferlist"

// canonical reports whether set holds one float64 channel per buffer
func canonical(set *bufferlist.Set) bool {
	if set == nil || set.Freed() {
		return false
	}
	return set.Format().IsCanonical()
}

func clampFrames(set *bufferlist.Set, frames int) int {
	if frames > set.Capacity() {
		return set.Capacity()
	}
	return frames
}

// ApplyGain multiplies the first frames frames of every channel by gain.
// gain is a linear ratio, not decibels.
func ApplyGain(set *bufferlist.Set, gain float64, frames int) {
	if !canonical(set) {
		return
	}
	frames = clampFrames(set, frames)
	if frames <= 0 || gain == 1 {
		return
	}

	for ch := 0; ch < set.Len(); ch++ {
		samples := set.Float64(ch)[:frames]
		for i := range samples {
			samples[i] *= gain
		}
	}
}

// ApplyRamp multiplies frame i of every channel by *start + i*step.
// On return *start holds the gain for the frame after the last one processed,
// so consecutive calls continue the same ramp.
func ApplyRamp(set *bufferlist.Set, start *float64, step float64, frames int) {
	if !canonical(set) {
		return
	}
	frames = clampFrames(set, frames)
	if frames <= 0 {
		return
	}

	g0 := *start
	for ch := 0; ch < set.Len(); ch++ {
		samples := set.Float64(ch)[:frames]
		for i := range samples {
			samples[i] *= g0 + float64(i)*step
		}
	}
	*start = g0 + float64(frames)*step
}
