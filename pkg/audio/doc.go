// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the Format type and sample conversion functions
// Package audio provides fundamental audio types shared by the offline renderer.
//
// This package defines:
//   - Format: describes the shape of a sample buffer (rate, channels, bit depth,
//     interleaving, integer vs float)
//   - Canonical: the renderer's internal format, non-interleaved 64-bit float
//
// It also provides utilities for converting between integer PCM and float samples:
//   - 16-bit and 24-bit integer ↔ float64 in [-1, 1]
//   - int32 ↔ packed 24-bit byte conversions
//
// Example:
//
//	format := audio.Format{
//	    SampleRate:     48000,
//	    Channels:       2,
//	    BitsPerChannel: 24,
//	    Interleaved:    true,
//	}
//
//	// Convert a 16-bit sample to float
//	v := audio.FloatFromInt16(sample16)
package audio
