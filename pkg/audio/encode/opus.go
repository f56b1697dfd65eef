// ABOUTME: Ogg Opus file writer
// ABOUTME: Encodes 20ms frames with libopus and muxes them into Ogg pages
package encode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/hraban/opus.v2"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
	"github.com/Sendspin/offline-render/pkg/audio/ogg"
	"github.com/Sendspin/offline-render/internal/version"
)

const (
	// OpusRate is the only input rate the writer accepts
	OpusRate = 48000

	// 20ms frames
	opusFrameSize = OpusRate / 50

	// Encoder lookahead at 48 kHz, recorded as pre-skip
	opusPreSkip = 312

	maxOpusPacket = 4000
)

// OpusWriter writes a canonical 48 kHz stream as Ogg Opus
type OpusWriter struct {
	file    *os.File
	buf     *bufio.Writer
	ogg     *ogg.Writer
	encoder *opus.Encoder
	input   audio.Format

	frame   []float32
	filled  int
	packet  []byte
	granule int64
	frames  int64
	closed  bool
}

// CreateOpus creates path and writes the Opus identification and comment headers
func CreateOpus(path string, format audio.Format, opts Options) (*OpusWriter, error) {
	if format.SampleRate != OpusRate || format.Channels < 1 || format.Channels > 2 {
		return nil, fmt.Errorf("%w: opus needs %d Hz with 1 or 2 channels, got %s", ErrUnsupportedFormat, OpusRate, format)
	}

	encoder, err := opus.NewEncoder(OpusRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if opts.Bitrate > 0 {
		if err := encoder.SetBitrate(opts.Bitrate); err != nil {
			return nil, fmt.Errorf("failed to set opus bitrate %d: %w", opts.Bitrate, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Opus file: %w", err)
	}
	buf := bufio.NewWriter(f)

	w := &OpusWriter{
		file:    f,
		buf:     buf,
		ogg:     ogg.NewWriter(buf, uuid.New().ID()),
		encoder: encoder,
		input:   format,
		frame:   make([]float32, opusFrameSize*format.Channels),
		packet:  make([]byte, maxOpusPacket),
		granule: opusPreSkip,
	}

	if err := w.writeHeaders(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *OpusWriter) writeHeaders() error {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1
	head[9] = byte(w.input.Channels)
	binary.LittleEndian.PutUint16(head[10:12], opusPreSkip)
	binary.LittleEndian.PutUint32(head[12:16], uint32(w.input.SampleRate))
	if err := w.ogg.WritePacket(head, 0, false); err != nil {
		return fmt.Errorf("failed to write OpusHead: %w", err)
	}

	vendor := version.String()
	tags := make([]byte, 0, 16+len(vendor))
	tags = append(tags, "OpusTags"...)
	tags = binary.LittleEndian.AppendUint32(tags, uint32(len(vendor)))
	tags = append(tags, vendor...)
	tags = binary.LittleEndian.AppendUint32(tags, 0)
	if err := w.ogg.WritePacket(tags, 0, false); err != nil {
		return fmt.Errorf("failed to write OpusTags: %w", err)
	}
	return nil
}

func (w *OpusWriter) Write(set *bufferlist.Set, frames int) error {
	if w.closed {
		return ErrClosed
	}
	frames, err := checkSet(set, w.input, frames)
	if err != nil {
		return err
	}

	channels := w.input.Channels
	for i := 0; i < frames; {
		n := min(opusFrameSize-w.filled, frames-i)
		for ch := 0; ch < channels; ch++ {
			src := set.Float64(ch)[i : i+n]
			for j, v := range src {
				w.frame[(w.filled+j)*channels+ch] = float32(v)
			}
		}
		w.filled += n
		i += n

		if w.filled == opusFrameSize {
			if err := w.flushFrame(false); err != nil {
				return err
			}
		}
	}
	w.frames += int64(frames)
	return nil
}

func (w *OpusWriter) flushFrame(last bool) error {
	n, err := w.encoder.EncodeFloat32(w.frame, w.packet)
	if err != nil {
		return fmt.Errorf("opus encode error: %w", err)
	}

	w.granule += opusFrameSize
	granule := w.granule
	if last {
		// End trimming: the final granule marks the true end of the audio
		granule = opusPreSkip + w.frames
	}
	if err := w.ogg.WritePacket(w.packet[:n], granule, last); err != nil {
		return fmt.Errorf("failed to write opus packet: %w", err)
	}
	w.filled = 0
	return nil
}

// Close encodes the final padded frame, ends the stream and closes the file
func (w *OpusWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	clear(w.frame[w.filled*w.input.Channels:])
	if err := w.flushFrame(true); err != nil {
		w.file.Close()
		return err
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush Opus file: %w", err)
	}
	return w.file.Close()
}
