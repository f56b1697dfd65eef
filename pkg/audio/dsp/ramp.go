// ABOUTME: Preallocated ramp processor for the render path
// ABOUTME: Builds the gain curve once per block and multiplies each channel by it
package dsp

import (
	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
)

// Ramp applies a linear gain ramp using a curve buffer sized up front.
// It produces the same samples as ApplyRamp.
type Ramp struct {
	// Gain is the gain of the next frame to be processed
	Gain float64

	// Step is the per-frame gain increment
	Step float64

	curve []float64
}

// NewRamp creates a ramp able to process blocks of up to maxFrames frames
func NewRamp(start, step float64, maxFrames int) *Ramp {
	if maxFrames < 0 {
		maxFrames = 0
	}
	return &Ramp{
		Gain:  start,
		Step:  step,
		curve: make([]float64, maxFrames),
	}
}

// Apply ramps the first frames frames of set and advances Gain
func (r *Ramp) Apply(set *bufferlist.Set, frames int) {
	r.ApplyRange(set, 0, frames)
}

// ApplyRange ramps frames frames of set starting at offset and advances Gain.
// Blocks larger than the preallocated curve are processed in pieces.
func (r *Ramp) ApplyRange(set *bufferlist.Set, offset, frames int) {
	if !canonical(set) || offset < 0 {
		return
	}
	frames = min(frames, set.Capacity()-offset)
	if frames <= 0 {
		return
	}

	if len(r.curve) == 0 {
		for ch := 0; ch < set.Len(); ch++ {
			samples := set.Float64(ch)[offset : offset+frames]
			for i := range samples {
				samples[i] *= r.Gain + float64(i)*r.Step
			}
		}
		r.Gain += float64(frames) * r.Step
		return
	}

	end := offset + frames
	for pos := offset; pos < end; {
		n := min(end-pos, len(r.curve))
		curve := r.curve[:n]
		for i := range curve {
			curve[i] = r.Gain + float64(i)*r.Step
		}
		for ch := 0; ch < set.Len(); ch++ {
			vecmath.MulBlockInPlace(set.Float64(ch)[pos:pos+n], curve)
		}
		r.Gain += float64(n) * r.Step
		pos += n
	}
}

// Done reports whether the ramp has reached or passed target in its direction
func (r *Ramp) Done(target float64) bool {
	if r.Step > 0 {
		return r.Gain >= target
	}
	if r.Step < 0 {
		return r.Gain <= target
	}
	return true
}
