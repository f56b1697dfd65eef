// ABOUTME: Gain and ramp processing for canonical float buffer sets
// ABOUTME: Package documentation for in-place DSP operations
// Package dsp applies gain and linear gain ramps to buffer sets holding
// non-interleaved 64-bit float samples.
//
// All operations mutate in place and never allocate, so they are safe to
// call once per block from the render loop:
//
//	gain := dsp.DecibelsToRatio(-6)
//	dsp.ApplyGain(set, gain, frames)
//
//	start := 0.0
//	dsp.ApplyRamp(set, &start, 1.0/float64(fadeFrames), frames)
//
// Sets in any other sample format are left untouched.
package dsp
