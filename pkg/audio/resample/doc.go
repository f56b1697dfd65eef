// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts canonical float streams between sample rates
// Package resample provides streaming sample rate conversion.
//
// Uses linear interpolation between neighbouring frames and carries the
// last input frame across blocks, so a stream read in any block size
// produces the same output.
//
// Example:
//
//	r, err := resample.New(src, 44100, 48000, 2, 4096)
//	n, err := r.Read(set, 4096)
package resample
