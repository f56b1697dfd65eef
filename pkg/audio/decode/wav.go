// ABOUTME: WAV file source
// ABOUTME: Parses RIFF/WAVE headers and converts PCM or float samples
package decode

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
)

const (
	wavFormatPCM        = 0x0001
	wavFormatFloat      = 0x0003
	wavFormatExtensible = 0xfffe
)

// maxFmtChunk bounds the fmt chunk read into memory
const maxFmtChunk = 64 << 10

// ErrInvalidWAV is returned for files that are not well-formed WAVE data
var ErrInvalidWAV = errors.New("decode: invalid wav file")

// WAVSource reads a WAV file
type WAVSource struct {
	file       *os.File
	reader     *bufio.Reader
	format     audio.Format
	float      bool
	bitDepth   int
	blockAlign int
	frames     int64
	remaining  int64

	scratch []byte
}

// OpenWAV opens a WAV file and positions it at the first sample
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	s, err := newWAVSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func newWAVSource(f *os.File) (*WAVSource, error) {
	r := bufio.NewReaderSize(f, 64*1024)

	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrInvalidWAV)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE tags", ErrInvalidWAV)
	}

	s := &WAVSource{file: f, reader: r}
	haveFmt := false
	offset := int64(len(riff))

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return nil, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		offset += int64(len(chunk))

		switch id {
		case "fmt ":
			if err := s.parseFmt(r, size); err != nil {
				return nil, err
			}
			haveFmt = true
			offset += size + size&1
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data before fmt chunk", ErrInvalidWAV)
			}
			if info, err := f.Stat(); err == nil {
				// Streaming writers leave the size zero or unset
				if avail := max(info.Size()-offset, 0); size == 0 || size > avail {
					size = avail
				}
			}
			s.frames = size / int64(s.blockAlign)
			s.remaining = s.frames
			return s, nil
		default:
			if _, err := r.Discard(int(size + size&1)); err != nil {
				return nil, fmt.Errorf("%w: truncated %q chunk", ErrInvalidWAV, id)
			}
			offset += size + size&1
		}
	}
}

func (s *WAVSource) parseFmt(r io.Reader, size int64) error {
	if size < 16 {
		return fmt.Errorf("%w: fmt chunk too small", ErrInvalidWAV)
	}
	if size > maxFmtChunk {
		return fmt.Errorf("%w: fmt chunk of %d bytes", ErrInvalidWAV, size)
	}
	buf := make([]byte, size+size&1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("%w: truncated fmt chunk", ErrInvalidWAV)
	}

	tag := binary.LittleEndian.Uint16(buf[0:2])
	channels := int(binary.LittleEndian.Uint16(buf[2:4]))
	rate := binary.LittleEndian.Uint32(buf[4:8])
	s.blockAlign = int(binary.LittleEndian.Uint16(buf[12:14]))
	s.bitDepth = int(binary.LittleEndian.Uint16(buf[14:16]))

	if tag == wavFormatExtensible {
		if size < 26 {
			return fmt.Errorf("%w: extensible fmt chunk too small", ErrInvalidWAV)
		}
		// First two bytes of the sub-format GUID carry the format tag
		tag = binary.LittleEndian.Uint16(buf[24:26])
	}

	switch {
	case tag == wavFormatPCM && (s.bitDepth == 8 || s.bitDepth == 16 || s.bitDepth == 24 || s.bitDepth == 32):
	case tag == wavFormatFloat && (s.bitDepth == 32 || s.bitDepth == 64):
		s.float = true
	default:
		return fmt.Errorf("%w: wav format tag %#x with %d bits", ErrUnsupportedFormat, tag, s.bitDepth)
	}

	if channels <= 0 || rate == 0 || s.blockAlign != channels*s.bitDepth/8 {
		return fmt.Errorf("%w: %d channels, %d Hz, block align %d", ErrInvalidWAV, channels, rate, s.blockAlign)
	}

	s.format = audio.Canonical(float64(rate), channels)
	return nil
}

func (s *WAVSource) Format() audio.Format { return s.format }
func (s *WAVSource) Frames() int64        { return s.frames }

// BitDepth returns the stored sample width
func (s *WAVSource) BitDepth() int { return s.bitDepth }

func (s *WAVSource) Read(set *bufferlist.Set, frames int) (int, error) {
	frames, err := checkSet(set, s.format, frames)
	if err != nil {
		return 0, err
	}
	if s.remaining == 0 {
		return 0, io.EOF
	}
	if int64(frames) > s.remaining {
		frames = int(s.remaining)
	}

	need := frames * s.blockAlign
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	buf := s.scratch[:need]

	n, err := io.ReadFull(s.reader, buf)
	got := n / s.blockAlign
	if err != nil && got == 0 {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			s.remaining = 0
			return 0, io.EOF
		}
		return 0, fmt.Errorf("failed to read wav samples: %w", err)
	}

	s.deinterleave(set, buf[:got*s.blockAlign], got)
	s.remaining -= int64(got)
	if err != nil {
		// Truncated file; what was read is still valid
		s.remaining = 0
	}
	return got, nil
}

func (s *WAVSource) deinterleave(set *bufferlist.Set, buf []byte, frames int) {
	channels := s.format.Channels
	width := s.bitDepth / 8

	for ch := 0; ch < channels; ch++ {
		dst := set.Float64(ch)
		off := ch * width
		for i := 0; i < frames; i++ {
			p := buf[off : off+width]
			dst[i] = s.sample(p)
			off += s.blockAlign
		}
	}
}

func (s *WAVSource) sample(p []byte) float64 {
	if s.float {
		if len(p) == 4 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	}
	switch len(p) {
	case 1:
		// 8-bit WAV is unsigned
		return float64(int32(p[0])-128) / 128
	case 2:
		return audio.FloatFromInt16(int16(binary.LittleEndian.Uint16(p)))
	case 3:
		return audio.FloatFromInt24(audio.SampleFrom24Bit([3]byte{p[0], p[1], p[2]}))
	default:
		return audio.FloatFromBits(int32(binary.LittleEndian.Uint32(p)), 32)
	}
}

func (s *WAVSource) Close() error {
	return s.file.Close()
}
