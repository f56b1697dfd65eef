// ABOUTME: Ogg Opus file source
// ABOUTME: Demuxes Ogg pages and decodes Opus packets to canonical float samples
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/hraban/opus.v2"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
	"github.com/Sendspin/offline-render/pkg/audio/ogg"
)

const (
	// OpusRate is the rate every Opus stream decodes at
	OpusRate = 48000

	// Largest Opus frame is 120ms
	opusMaxFrame = 5760
)

// OpusSource reads an Ogg Opus file
type OpusSource struct {
	file    *os.File
	reader  *ogg.Reader
	decoder *opus.Decoder
	format  audio.Format
	frames  int64
	gain    float32

	// remaining counts undelivered frames, -1 when the length is unknown
	remaining int64

	preSkip int
	pcm     []float32
	// pending is the undelivered part of pcm, interleaved
	pending []float32
}

// OpenOpus opens an Ogg Opus file
func OpenOpus(path string) (*OpusSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Opus file: %w", err)
	}

	s, err := newOpusSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func newOpusSource(f *os.File) (*OpusSource, error) {
	lastGranule := finalGranule(f)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind Opus file: %w", err)
	}

	reader := ogg.NewReader(f)
	head, _, err := reader.ReadPacket()
	if err != nil {
		return nil, fmt.Errorf("failed to read OpusHead: %w", err)
	}
	if len(head) < 19 || !bytes.Equal(head[:8], []byte("OpusHead")) {
		return nil, fmt.Errorf("%w: missing OpusHead", ErrUnsupportedFormat)
	}
	channels := int(head[9])
	preSkip := int(binary.LittleEndian.Uint16(head[10:12]))
	gainQ8 := int16(binary.LittleEndian.Uint16(head[16:18]))
	if head[18] != 0 || channels < 1 || channels > 2 {
		return nil, fmt.Errorf("%w: opus mapping family %d with %d channels", ErrUnsupportedFormat, head[18], channels)
	}

	tags, _, err := reader.ReadPacket()
	if err != nil || !bytes.HasPrefix(tags, []byte("OpusTags")) {
		return nil, fmt.Errorf("%w: missing OpusTags", ErrUnsupportedFormat)
	}

	decoder, err := opus.NewDecoder(OpusRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	frames := int64(-1)
	if lastGranule >= int64(preSkip) {
		frames = lastGranule - int64(preSkip)
	}

	return &OpusSource{
		file:      f,
		reader:    reader,
		decoder:   decoder,
		format:    audio.Canonical(OpusRate, channels),
		frames:    frames,
		remaining: frames,
		gain:      float32(math.Pow(10, float64(gainQ8)/256/20)),
		preSkip:   preSkip,
		pcm:       make([]float32, opusMaxFrame*channels),
	}, nil
}

// finalGranule returns the granule position of the last page in f, or -1
func finalGranule(f *os.File) int64 {
	info, err := f.Stat()
	if err != nil {
		return -1
	}
	size := info.Size()
	start := max(size-64*1024, 0)
	tail := make([]byte, size-start)
	if _, err := f.ReadAt(tail, start); err != nil && !errors.Is(err, io.EOF) {
		return -1
	}
	i := bytes.LastIndex(tail, []byte("OggS"))
	if i < 0 || i+14 > len(tail) {
		return -1
	}
	return int64(binary.LittleEndian.Uint64(tail[i+6 : i+14]))
}

func (s *OpusSource) Format() audio.Format { return s.format }
func (s *OpusSource) Frames() int64        { return s.frames }

func (s *OpusSource) Read(set *bufferlist.Set, frames int) (int, error) {
	frames, err := checkSet(set, s.format, frames)
	if err != nil {
		return 0, err
	}
	if s.remaining == 0 {
		return 0, io.EOF
	}
	channels := s.format.Channels

	read := 0
	for read < frames {
		if len(s.pending) == 0 {
			if err := s.decodeNext(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return read, err
			}
			continue
		}

		n := min(len(s.pending)/channels, frames-read)
		if s.remaining > 0 {
			n = int(min(int64(n), s.remaining))
		}
		for ch := 0; ch < channels; ch++ {
			dst := set.Float64(ch)[read : read+n]
			for i := range dst {
				dst[i] = float64(s.pending[i*channels+ch] * s.gain)
			}
		}
		s.pending = s.pending[n*channels:]
		read += n
		if s.remaining > 0 {
			s.remaining -= int64(n)
			if s.remaining == 0 {
				// Trailing padding past the final granule is dropped
				s.pending = nil
				break
			}
		}
	}

	if read == 0 {
		return 0, io.EOF
	}
	return read, nil
}

func (s *OpusSource) decodeNext() error {
	packet, _, err := s.reader.ReadPacket()
	if err != nil {
		return err
	}
	n, err := s.decoder.DecodeFloat32(packet, s.pcm)
	if err != nil {
		return fmt.Errorf("opus decode failed: %w", err)
	}

	channels := s.format.Channels
	pcm := s.pcm[:n*channels]
	if s.preSkip > 0 {
		skip := min(s.preSkip, n)
		pcm = pcm[skip*channels:]
		s.preSkip -= skip
	}
	s.pending = pcm
	return nil
}

func (s *OpusSource) Close() error {
	return s.file.Close()
}
