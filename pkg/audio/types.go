// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats and integer/float sample conversions
package audio

import (
	"errors"
	"fmt"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// CanonicalBits is the bit depth of the renderer's internal float samples
	CanonicalBits = 64
)

var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrInvalidChannels   = errors.New("channel count must be positive")
	ErrInvalidBitDepth   = errors.New("unsupported bits per channel")
)

// Format describes the shape of every buffer set created against it
type Format struct {
	SampleRate     float64
	Channels       int
	BitsPerChannel int
	Interleaved    bool
	Float          bool
}

// Canonical returns the renderer's internal format: non-interleaved float64
func Canonical(sampleRate float64, channels int) Format {
	return Format{
		SampleRate:     sampleRate,
		Channels:       channels,
		BitsPerChannel: CanonicalBits,
		Interleaved:    false,
		Float:          true,
	}
}

// Validate reports whether the format can describe a buffer
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if f.Channels <= 0 {
		return ErrInvalidChannels
	}
	switch {
	case f.Float && (f.BitsPerChannel == 32 || f.BitsPerChannel == 64):
	case !f.Float && (f.BitsPerChannel == 8 || f.BitsPerChannel == 16 ||
		f.BitsPerChannel == 24 || f.BitsPerChannel == 32):
	default:
		return fmt.Errorf("%w: %d (float=%v)", ErrInvalidBitDepth, f.BitsPerChannel, f.Float)
	}
	return nil
}

// IsCanonical reports whether samples can be processed without conversion
func (f Format) IsCanonical() bool {
	return f.Float && f.BitsPerChannel == CanonicalBits && (!f.Interleaved || f.Channels == 1)
}

// BytesPerSample returns the storage size of one sample of one channel
func (f Format) BytesPerSample() int {
	return f.BitsPerChannel / 8
}

// BufferCount returns how many separate buffers hold the channels
func (f Format) BufferCount() int {
	if f.Interleaved {
		return 1
	}
	return f.Channels
}

// ChannelsPerBuffer returns how many channels share one buffer
func (f Format) ChannelsPerBuffer() int {
	if f.Interleaved {
		return f.Channels
	}
	return 1
}

// BytesPerFrame returns the size of one frame within a single buffer
func (f Format) BytesPerFrame() int {
	return f.BytesPerSample() * f.ChannelsPerBuffer()
}

// WithSampleRate returns a copy of the format at a different rate
func (f Format) WithSampleRate(rate float64) Format {
	f.SampleRate = rate
	return f
}

func (f Format) String() string {
	kind := "int"
	if f.Float {
		kind = "float"
	}
	layout := "non-interleaved"
	if f.Interleaved {
		layout = "interleaved"
	}
	return fmt.Sprintf("%gHz %dch %d-bit %s %s", f.SampleRate, f.Channels, f.BitsPerChannel, kind, layout)
}

// FloatFromInt16 converts a 16-bit sample to float in [-1, 1)
func FloatFromInt16(sample int16) float64 {
	return float64(sample) / 32768.0
}

// FloatToInt16 converts a float sample to 16-bit with clipping
func FloatToInt16(v float64) int16 {
	scaled := v * 32768.0
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}

// FloatFromInt24 converts a sign-extended 24-bit sample to float
func FloatFromInt24(sample int32) float64 {
	return float64(sample) / 8388608.0
}

// FloatToInt24 converts a float sample to the 24-bit range with clipping
func FloatToInt24(v float64) int32 {
	scaled := v * 8388608.0
	if scaled > Max24Bit {
		return Max24Bit
	}
	if scaled < Min24Bit {
		return Min24Bit
	}
	return int32(scaled)
}

// FloatFromBits converts a signed integer sample of the given bit depth to float
func FloatFromBits(sample int32, bits int) float64 {
	if bits <= 0 || bits > 32 {
		return 0
	}
	return float64(sample) / float64(int64(1)<<(bits-1))
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	// Take lower 24 bits, pack little-endian
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
