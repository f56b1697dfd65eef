// ABOUTME: MP3 file source
// ABOUTME: Decodes MP3 through go-mp3 into canonical stereo float samples
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
)

// go-mp3 always produces 16-bit little-endian stereo
const mp3BytesPerFrame = 4

// MP3Source reads from an MP3 file
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	format  audio.Format
	frames  int64

	scratch []byte
}

// OpenMP3 opens an MP3 file
func OpenMP3(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	frames := int64(-1)
	if n := decoder.Length(); n > 0 {
		frames = n / mp3BytesPerFrame
	}

	return &MP3Source{
		file:    f,
		decoder: decoder,
		format:  audio.Canonical(float64(decoder.SampleRate()), 2),
		frames:  frames,
	}, nil
}

func (s *MP3Source) Format() audio.Format { return s.format }
func (s *MP3Source) Frames() int64        { return s.frames }

func (s *MP3Source) Read(set *bufferlist.Set, frames int) (int, error) {
	frames, err := checkSet(set, s.format, frames)
	if err != nil {
		return 0, err
	}

	need := frames * mp3BytesPerFrame
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	buf := s.scratch[:need]

	n, err := io.ReadFull(s.decoder, buf)
	got := n / mp3BytesPerFrame
	if got == 0 {
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("mp3 decode error: %w", err)
	}
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("mp3 decode error: %w", err)
	}

	left, right := set.Float64(0), set.Float64(1)
	for i := 0; i < got; i++ {
		left[i] = audio.FloatFromInt16(int16(binary.LittleEndian.Uint16(buf[i*4:])))
		right[i] = audio.FloatFromInt16(int16(binary.LittleEndian.Uint16(buf[i*4+2:])))
	}
	return got, nil
}

func (s *MP3Source) Close() error {
	return s.file.Close()
}
