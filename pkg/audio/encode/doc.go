// ABOUTME: Audio file writers for offline rendering
// ABOUTME: Provides Writer interface and WAV and Ogg Opus implementations
// Package encode writes canonical float buffer sets to audio files.
//
// Supports: WAV (PCM 16/24-bit, float 32-bit), Ogg Opus
//
// Writers accept non-interleaved float64 blocks in file order. The WAV writer
// seeks back once, in Close, to finalise its header.
//
// Example:
//
//	w, err := encode.Create("out.wav", audio.Canonical(48000, 2), encode.Options{BitDepth: 24})
//	err = w.Write(set, n)
//	err = w.Close()
package encode
