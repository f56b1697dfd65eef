// ABOUTME: WAV file writer
// ABOUTME: Interleaves float blocks into PCM or float samples and patches sizes on close
package encode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
)

const (
	wavHeaderSize = 44

	// RIFF sizes are 32-bit
	maxWAVData = math.MaxUint32 - wavHeaderSize
)

// WAVWriter writes a canonical stream as a WAV file
type WAVWriter struct {
	file   *os.File
	buf    *bufio.Writer
	input  audio.Format
	stored audio.Format

	dataBytes int64
	scratch   []byte
	closed    bool
}

func wavStoredFormat(format audio.Format, opts Options) (audio.Format, error) {
	stored := audio.Format{
		SampleRate:     format.SampleRate,
		Channels:       format.Channels,
		BitsPerChannel: opts.BitDepth,
		Interleaved:    true,
		Float:          opts.Float,
	}
	if opts.Float {
		stored.BitsPerChannel = 32
	}
	if stored.BitsPerChannel == 0 {
		stored.BitsPerChannel = 16
	}
	if !stored.Float && stored.BitsPerChannel != 16 && stored.BitsPerChannel != 24 {
		return audio.Format{}, fmt.Errorf("%w: wav bit depth %d (supported: 16, 24)", ErrUnsupportedFormat, stored.BitsPerChannel)
	}
	if err := stored.Validate(); err != nil {
		return audio.Format{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return stored, nil
}

// CreateWAV creates path and writes a provisional header
func CreateWAV(path string, format audio.Format, opts Options) (*WAVWriter, error) {
	stored, err := wavStoredFormat(format, opts)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	w := &WAVWriter{
		file:   f,
		buf:    bufio.NewWriterSize(f, 64*1024),
		input:  format,
		stored: stored,
	}
	if _, err := w.buf.Write(w.header()); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return w, nil
}

// Format returns the on-disk sample format
func (w *WAVWriter) Format() audio.Format { return w.stored }

func (w *WAVWriter) header() []byte {
	h := make([]byte, wavHeaderSize)
	tag := uint16(1)
	if w.stored.Float {
		tag = 3
	}
	blockAlign := w.stored.BytesPerFrame()
	rate := uint32(w.stored.SampleRate)

	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+w.dataBytes+w.dataBytes&1))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], tag)
	binary.LittleEndian.PutUint16(h[22:24], uint16(w.stored.Channels))
	binary.LittleEndian.PutUint32(h[24:28], rate)
	binary.LittleEndian.PutUint32(h[28:32], rate*uint32(blockAlign))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], uint16(w.stored.BitsPerChannel))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(w.dataBytes))
	return h
}

func (w *WAVWriter) Write(set *bufferlist.Set, frames int) error {
	if w.closed {
		return ErrClosed
	}
	frames, err := checkSet(set, w.input, frames)
	if err != nil {
		return err
	}
	if frames == 0 {
		return nil
	}

	blockAlign := w.stored.BytesPerFrame()
	need := frames * blockAlign
	if w.dataBytes+int64(need) > maxWAVData {
		return fmt.Errorf("%w: wav data exceeds 4 GiB", ErrUnsupportedFormat)
	}
	if cap(w.scratch) < need {
		w.scratch = make([]byte, need)
	}
	out := w.scratch[:need]

	width := w.stored.BytesPerSample()
	for ch := 0; ch < w.stored.Channels; ch++ {
		src := set.Float64(ch)[:frames]
		off := ch * width
		for _, v := range src {
			w.putSample(out[off:off+width], v)
			off += blockAlign
		}
	}

	if _, err := w.buf.Write(out); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	w.dataBytes += int64(need)
	return nil
}

func (w *WAVWriter) putSample(p []byte, v float64) {
	switch {
	case w.stored.Float:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case len(p) == 2:
		binary.LittleEndian.PutUint16(p, uint16(audio.FloatToInt16(v)))
	default:
		b := audio.SampleTo24Bit(audio.FloatToInt24(v))
		copy(p, b[:])
	}
}

// Close flushes buffered samples, writes the final sizes and closes the file
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush WAV samples: %w", err)
	}
	if w.dataBytes%2 == 1 {
		if _, err := w.file.Write([]byte{0}); err != nil {
			w.file.Close()
			return fmt.Errorf("failed to pad WAV data: %w", err)
		}
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to rewind WAV file: %w", err)
	}
	if _, err := w.file.Write(w.header()); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalise WAV header: %w", err)
	}
	return w.file.Close()
}
