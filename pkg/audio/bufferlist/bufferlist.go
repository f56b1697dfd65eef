// ABOUTME: Buffer set allocation and release
// ABOUTME: Owns per-channel storage sized by format and frame count
package bufferlist

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/Sendspin/offline-render/pkg/audio"
)

var (
	ErrInvalidFormat = errors.New("bufferlist: invalid format")
	ErrAllocation    = errors.New("bufferlist: allocation failed")
)

// MaxBufferBytes caps the size of a single channel buffer
var MaxBufferBytes int64 = 1 << 32

// Buffer is one contiguous block of sample storage
type Buffer struct {
	// Channels is the number of interleaved channels stored in Data
	Channels int

	// Data is the byte view of the storage; its length is the byte capacity
	Data []byte

	words []uint64
}

// Set is an ordered group of buffers sharing one format and frame capacity
type Set struct {
	format   audio.Format
	buffers  []Buffer
	capacity int
	frames   int
}

// Allocate creates a buffer set for frames frames of format.
// A frame count of zero builds the structure with no backing storage.
func Allocate(format audio.Format, frames int) (*Set, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if frames < 0 {
		return nil, fmt.Errorf("%w: negative frame count %d", ErrInvalidFormat, frames)
	}

	bytesPerFrame := format.BytesPerFrame()
	if frames > 0 && frames > math.MaxInt/bytesPerFrame {
		return nil, fmt.Errorf("%w: %d frames overflows buffer size", ErrAllocation, frames)
	}
	size := frames * bytesPerFrame
	if int64(size) > MaxBufferBytes {
		return nil, fmt.Errorf("%w: %d bytes per buffer exceeds limit %d", ErrAllocation, size, MaxBufferBytes)
	}

	set := &Set{
		format:   format,
		buffers:  make([]Buffer, format.BufferCount()),
		capacity: frames,
		frames:   frames,
	}

	for i := range set.buffers {
		set.buffers[i].Channels = format.ChannelsPerBuffer()
		if size == 0 {
			continue
		}
		words, err := allocWords((size + 7) / 8)
		if err != nil {
			set.Free()
			return nil, err
		}
		set.buffers[i].words = words
		set.buffers[i].Data = unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size)
	}

	return set, nil
}

// allocWords converts a makeslice failure into an error
func allocWords(n int) (words []uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAllocation, r)
		}
	}()
	return make([]uint64, n), nil
}

// Free releases all storage. Calling Free again is a no-op.
func (s *Set) Free() {
	if s == nil {
		return
	}
	for i := range s.buffers {
		s.buffers[i].Data = nil
		s.buffers[i].words = nil
	}
	s.buffers = nil
	s.capacity = 0
	s.frames = 0
}

// Freed reports whether the set no longer owns storage
func (s *Set) Freed() bool {
	return s == nil || s.buffers == nil
}

// Format returns the format the set was allocated against
func (s *Set) Format() audio.Format {
	return s.format
}

// Len returns the number of buffers
func (s *Set) Len() int {
	return len(s.buffers)
}

// Buffer returns the i-th buffer
func (s *Set) Buffer(i int) *Buffer {
	return &s.buffers[i]
}

// Channels returns the total channel count across all buffers
func (s *Set) Channels() int {
	n := 0
	for i := range s.buffers {
		n += s.buffers[i].Channels
	}
	return n
}

// Capacity returns the frame capacity of every buffer
func (s *Set) Capacity() int {
	return s.capacity
}

// Frames returns the number of valid frames
func (s *Set) Frames() int {
	return s.frames
}

// SetFrames sets the valid frame count, clamped to capacity, and returns it
func (s *Set) SetFrames(n int) int {
	if n < 0 {
		n = 0
	}
	if n > s.capacity {
		n = s.capacity
	}
	s.frames = n
	return n
}

// Float64 returns buffer i as float64 samples, or nil when the format is not 64-bit float
func (s *Set) Float64(i int) []float64 {
	if !s.format.Float || s.format.BitsPerChannel != 64 {
		return nil
	}
	b := &s.buffers[i]
	if len(b.words) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(unsafe.SliceData(b.words))), len(b.Data)/8)
}

// Float32 returns buffer i as float32 samples, or nil when the format is not 32-bit float
func (s *Set) Float32(i int) []float32 {
	if !s.format.Float || s.format.BitsPerChannel != 32 {
		return nil
	}
	b := &s.buffers[i]
	if len(b.words) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(b.words))), len(b.Data)/4)
}

// Silence zero-fills frames frames starting at offset in every buffer
func (s *Set) Silence(offset, frames int) {
	if offset < 0 {
		offset = 0
	}
	if offset+frames > s.capacity {
		frames = s.capacity - offset
	}
	if frames <= 0 {
		return
	}
	bpf := s.format.BytesPerFrame()
	for i := range s.buffers {
		clear(s.buffers[i].Data[offset*bpf : (offset+frames)*bpf])
	}
}
