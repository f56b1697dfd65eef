// ABOUTME: FLAC file source
// ABOUTME: Decodes FLAC frames through mewkiz/flac into canonical float samples
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file     *os.File
	stream   *flac.Stream
	format   audio.Format
	bitDepth int
	frames   int64

	// pending holds the undelivered tail of the last parsed frame
	pending *frame.Frame
	offset  int
}

// OpenFLAC opens a FLAC file
func OpenFLAC(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	frames := int64(-1)
	if info.NSamples > 0 {
		frames = int64(info.NSamples)
	}

	return &FLACSource{
		file:     f,
		stream:   stream,
		format:   audio.Canonical(float64(info.SampleRate), int(info.NChannels)),
		bitDepth: int(info.BitsPerSample),
		frames:   frames,
	}, nil
}

func (s *FLACSource) Format() audio.Format { return s.format }
func (s *FLACSource) Frames() int64        { return s.frames }

// BitDepth returns the stored sample width
func (s *FLACSource) BitDepth() int { return s.bitDepth }

func (s *FLACSource) Read(set *bufferlist.Set, frames int) (int, error) {
	frames, err := checkSet(set, s.format, frames)
	if err != nil {
		return 0, err
	}

	read := 0
	for read < frames {
		if s.pending == nil {
			fr, err := s.stream.ParseNext()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return read, fmt.Errorf("flac decode error: %w", err)
			}
			s.pending = fr
			s.offset = 0
		}

		block := int(s.pending.BlockSize)
		n := min(block-s.offset, frames-read)
		for ch := 0; ch < s.format.Channels; ch++ {
			src := s.pending.Subframes[ch].Samples[s.offset : s.offset+n]
			dst := set.Float64(ch)[read : read+n]
			for i, v := range src {
				dst[i] = audio.FloatFromBits(v, s.bitDepth)
			}
		}
		read += n
		s.offset += n
		if s.offset >= block {
			s.pending = nil
		}
	}

	if read == 0 {
		return 0, io.EOF
	}
	return read, nil
}

func (s *FLACSource) Close() error {
	return s.file.Close()
}
