// ABOUTME: Tests for audio types
// ABOUTME: Tests format validation and sample conversion functions
package audio

import (
	"errors"
	"testing"
)

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr error
	}{
		{"canonical stereo", Canonical(48000, 2), nil},
		{"16-bit interleaved", Format{SampleRate: 44100, Channels: 2, BitsPerChannel: 16, Interleaved: true}, nil},
		{"32-bit float mono", Format{SampleRate: 48000, Channels: 1, BitsPerChannel: 32, Float: true}, nil},
		{"zero rate", Format{Channels: 2, BitsPerChannel: 16}, ErrInvalidSampleRate},
		{"zero channels", Format{SampleRate: 48000, BitsPerChannel: 16}, ErrInvalidChannels},
		{"16-bit float", Format{SampleRate: 48000, Channels: 2, BitsPerChannel: 16, Float: true}, ErrInvalidBitDepth},
		{"12-bit int", Format{SampleRate: 48000, Channels: 2, BitsPerChannel: 12}, ErrInvalidBitDepth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFormatLayout(t *testing.T) {
	tests := []struct {
		name              string
		format            Format
		bufferCount       int
		channelsPerBuffer int
		bytesPerFrame     int
	}{
		{"canonical stereo", Canonical(48000, 2), 2, 1, 8},
		{"interleaved 24-bit stereo", Format{SampleRate: 48000, Channels: 2, BitsPerChannel: 24, Interleaved: true}, 1, 2, 6},
		{"non-interleaved 16-bit 6ch", Format{SampleRate: 48000, Channels: 6, BitsPerChannel: 16}, 6, 1, 2},
		{"interleaved float32 mono", Format{SampleRate: 48000, Channels: 1, BitsPerChannel: 32, Float: true, Interleaved: true}, 1, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.BufferCount(); got != tt.bufferCount {
				t.Errorf("expected BufferCount %d, got %d", tt.bufferCount, got)
			}
			if got := tt.format.ChannelsPerBuffer(); got != tt.channelsPerBuffer {
				t.Errorf("expected ChannelsPerBuffer %d, got %d", tt.channelsPerBuffer, got)
			}
			if got := tt.format.BytesPerFrame(); got != tt.bytesPerFrame {
				t.Errorf("expected BytesPerFrame %d, got %d", tt.bytesPerFrame, got)
			}
		})
	}
}

func TestIsCanonical(t *testing.T) {
	if !Canonical(44100, 2).IsCanonical() {
		t.Error("expected Canonical format to be canonical")
	}
	f := Format{SampleRate: 44100, Channels: 2, BitsPerChannel: 32, Float: true}
	if f.IsCanonical() {
		t.Error("expected float32 format not to be canonical")
	}
}

func TestFloatFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float64
	}{
		{"zero", 0, 0},
		{"half", 16384, 0.5},
		{"negative half", -16384, -0.5},
		{"min", -32768, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FloatFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestFloatToInt16Clips(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected int16
	}{
		{"zero", 0, 0},
		{"half", 0.5, 16384},
		{"full scale positive", 1.0, 32767},
		{"over range", 2.5, 32767},
		{"full scale negative", -1.0, -32768},
		{"under range", -3.0, -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FloatToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestFloatToInt24Clips(t *testing.T) {
	if got := FloatToInt24(1.5); got != Max24Bit {
		t.Errorf("expected %d, got %d", Max24Bit, got)
	}
	if got := FloatToInt24(-1.5); got != Min24Bit {
		t.Errorf("expected %d, got %d", Min24Bit, got)
	}
	if got := FloatToInt24(0.5); got != 4194304 {
		t.Errorf("expected 4194304, got %d", got)
	}
}

func TestFloatFromBits(t *testing.T) {
	if got := FloatFromBits(128, 8); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := FloatFromBits(-8388608, 24); got != -1 {
		t.Errorf("expected -1, got %v", got)
	}
	if got := FloatFromBits(5, 0); got != 0 {
		t.Errorf("expected 0 for invalid bit depth, got %v", got)
	}
}

func TestSampleTo24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected [3]byte
	}{
		{"zero", 0, [3]byte{0, 0, 0}},
		{"positive", 0x123456, [3]byte{0x56, 0x34, 0x12}},
		{"negative", -256, [3]byte{0x00, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleTo24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestSampleFrom24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    [3]byte
		expected int32
	}{
		{"zero", [3]byte{0, 0, 0}, 0},
		{"positive", [3]byte{0x56, 0x34, 0x12}, 0x123456},
		{"negative", [3]byte{0x00, 0xFF, 0xFF}, -256},
		{"max positive", [3]byte{0xFF, 0xFF, 0x7F}, Max24Bit},
		{"max negative", [3]byte{0x00, 0x00, 0x80}, Min24Bit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFrom24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestRoundTrip16Bit(t *testing.T) {
	samples := []int16{0, 100, -100, 1000, -1000, 32767, -32768}

	for _, original := range samples {
		f := FloatFromInt16(original)
		result := FloatToInt16(f)
		if result != original {
			t.Errorf("round-trip failed: %d -> %v -> %d", original, f, result)
		}
	}
}

func TestRoundTrip24Bit(t *testing.T) {
	samples := []int32{0, 100000, -100000, Max24Bit, Min24Bit}

	for _, original := range samples {
		f := FloatFromInt24(original)
		result := FloatToInt24(f)
		if result != original {
			t.Errorf("round-trip failed: %d -> %v -> %d", original, f, result)
		}
	}
}
