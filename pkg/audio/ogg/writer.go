// ABOUTME: Ogg page writer for one logical bitstream
// ABOUTME: Laces packets into pages with sequence numbers and checksums
package ogg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	flagContinued = 0x01
	flagBOS       = 0x02
	flagEOS       = 0x04

	headerSize  = 27
	maxSegments = 255
)

var capturePattern = []byte("OggS")

// ErrClosed is returned when writing after the end-of-stream page
var ErrClosed = errors.New("ogg: stream closed")

// Writer writes packets of a single logical bitstream
type Writer struct {
	w      io.Writer
	serial uint32
	seq    uint32
	first  bool
	closed bool

	header [headerSize + maxSegments]byte
}

// NewWriter creates a writer for the bitstream with the given serial number
func NewWriter(w io.Writer, serial uint32) *Writer {
	return &Writer{w: w, serial: serial, first: true}
}

// WritePacket writes one packet. granule is the granule position after the
// packet; eos marks the final packet of the stream.
func (w *Writer) WritePacket(packet []byte, granule int64, eos bool) error {
	if w.closed {
		return ErrClosed
	}

	// Lacing values for the whole packet; a multiple of 255 ends with a 0
	lacing := make([]byte, 0, len(packet)/255+1)
	for n := len(packet); ; n -= 255 {
		if n < 255 {
			lacing = append(lacing, byte(n))
			break
		}
		lacing = append(lacing, 255)
	}

	continued := false
	for len(lacing) > 0 {
		segs := lacing
		if len(segs) > maxSegments {
			segs = lacing[:maxSegments]
		}
		size := 0
		for _, l := range segs {
			size += int(l)
		}
		last := len(segs) == len(lacing)

		var flags byte
		if continued {
			flags |= flagContinued
		}
		if w.first {
			flags |= flagBOS
		}
		pageGranule := int64(-1)
		if last {
			pageGranule = granule
			if eos {
				flags |= flagEOS
			}
		}

		if err := w.writePage(flags, pageGranule, segs, packet[:size]); err != nil {
			return err
		}

		w.first = false
		continued = true
		packet = packet[size:]
		lacing = lacing[len(segs):]
	}

	if eos {
		w.closed = true
	}
	return nil
}

func (w *Writer) writePage(flags byte, granule int64, segs []byte, body []byte) error {
	h := w.header[:headerSize+len(segs)]
	copy(h[0:4], capturePattern)
	h[4] = 0
	h[5] = flags
	binary.LittleEndian.PutUint64(h[6:14], uint64(granule))
	binary.LittleEndian.PutUint32(h[14:18], w.serial)
	binary.LittleEndian.PutUint32(h[18:22], w.seq)
	binary.LittleEndian.PutUint32(h[22:26], 0)
	h[26] = byte(len(segs))
	copy(h[headerSize:], segs)

	crc := crcUpdate(crcUpdate(0, h), body)
	binary.LittleEndian.PutUint32(h[22:26], crc)

	if _, err := w.w.Write(h); err != nil {
		return fmt.Errorf("failed to write ogg page header: %w", err)
	}
	if _, err := w.w.Write(body); err != nil {
		return fmt.Errorf("failed to write ogg page body: %w", err)
	}
	w.seq++
	return nil
}
