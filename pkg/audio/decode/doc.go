// ABOUTME: Audio file sources for offline rendering
// ABOUTME: Provides Source interface and readers for WAV, MP3, FLAC and Ogg Opus
// Package decode reads audio files into canonical float buffer sets.
//
// Supports: WAV (PCM 8/16/24/32-bit, float 32/64-bit), MP3, FLAC, Ogg Opus
//
// All sources implement the Source interface and deliver non-interleaved
// float64 samples at the file's native rate and channel count.
//
// Example:
//
//	src, err := decode.Open("input.flac")
//	set, err := bufferlist.Allocate(src.Format(), 4096)
//	n, err := src.Read(set, 4096)
package decode
