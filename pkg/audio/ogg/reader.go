// ABOUTME: Ogg page reader for one logical bitstream
// ABOUTME: Verifies checksums and reassembles packets across pages
package ogg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrCorrupt is returned for pages that fail framing or checksum validation
var ErrCorrupt = errors.New("ogg: corrupt page")

// Reader returns packets of the first logical bitstream in r
type Reader struct {
	r      io.Reader
	serial uint32
	seen   bool
	eos    bool

	// segments of the current page not yet consumed
	lacing  []byte
	body    []byte
	granule int64

	partial []byte
}

// NewReader creates a packet reader
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadPacket returns the next complete packet and the granule position of the
// page it ends on, or -1 when further packets complete on the same page.
func (r *Reader) ReadPacket() ([]byte, int64, error) {
	for {
		for len(r.lacing) > 0 {
			l := int(r.lacing[0])
			r.lacing = r.lacing[1:]
			r.partial = append(r.partial, r.body[:l]...)
			r.body = r.body[l:]
			if l < 255 {
				packet := r.partial
				r.partial = nil
				granule := int64(-1)
				if len(r.lacing) == 0 {
					granule = r.granule
				}
				return packet, granule, nil
			}
		}

		if r.eos {
			return nil, 0, io.EOF
		}
		if err := r.nextPage(); err != nil {
			return nil, 0, err
		}
	}
}

func (r *Reader) nextPage() error {
	var h [headerSize]byte
	if _, err := io.ReadFull(r.r, h[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated header", ErrCorrupt)
		}
		return err
	}
	if !bytes.Equal(h[0:4], capturePattern) || h[4] != 0 {
		return fmt.Errorf("%w: bad capture pattern", ErrCorrupt)
	}

	segs := make([]byte, h[26])
	if _, err := io.ReadFull(r.r, segs); err != nil {
		return fmt.Errorf("%w: truncated segment table", ErrCorrupt)
	}
	size := 0
	for _, l := range segs {
		size += int(l)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return fmt.Errorf("%w: truncated body", ErrCorrupt)
	}

	want := binary.LittleEndian.Uint32(h[22:26])
	binary.LittleEndian.PutUint32(h[22:26], 0)
	if got := crcUpdate(crcUpdate(crcUpdate(0, h[:]), segs), body); got != want {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	serial := binary.LittleEndian.Uint32(h[14:18])
	if !r.seen {
		r.serial = serial
		r.seen = true
	}
	if serial != r.serial {
		// Other multiplexed streams are skipped
		return nil
	}

	if h[5]&flagContinued == 0 {
		r.partial = nil
	}
	r.lacing = segs
	r.body = body
	r.granule = int64(binary.LittleEndian.Uint64(h[6:14]))
	r.eos = h[5]&flagEOS != 0
	return nil
}
