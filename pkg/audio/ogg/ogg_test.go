// ABOUTME: Tests for Ogg page framing
// ABOUTME: Round-trips packets of assorted sizes and checks corruption handling
package ogg

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestCRCKnownValue(t *testing.T) {
	// Checksum of "OggS" under the Ogg polynomial
	if got := crcUpdate(0, []byte("OggS")); got != 0x5fb0a94f {
		t.Errorf("unexpected crc %08x", got)
	}
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 254, 255, 256, 510, 1000, 255 * 255, 255*255 + 17, 100000}

	var buf bytes.Buffer
	w := NewWriter(&buf, 0x1234)
	for i, n := range sizes {
		packet := bytes.Repeat([]byte{byte(i + 1)}, n)
		if err := w.WritePacket(packet, int64(i*960), i == len(sizes)-1); err != nil {
			t.Fatalf("write packet %d failed: %v", i, err)
		}
	}

	if err := w.WritePacket([]byte{1}, 0, false); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after eos, got %v", err)
	}

	r := NewReader(&buf)
	for i, n := range sizes {
		packet, granule, err := r.ReadPacket()
		if err != nil {
			t.Fatalf("read packet %d failed: %v", i, err)
		}
		if len(packet) != n {
			t.Fatalf("packet %d: expected %d bytes, got %d", i, n, len(packet))
		}
		if n > 0 && packet[0] != byte(i+1) {
			t.Errorf("packet %d: wrong content", i)
		}
		if granule != int64(i*960) {
			t.Errorf("packet %d: expected granule %d, got %d", i, i*960, granule)
		}
	}

	if _, _, err := r.ReadPacket(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFirstPageIsBOS(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 7)
	if err := w.WritePacket([]byte("head"), 0, false); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.WritePacket([]byte("next"), 0, true); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data := buf.Bytes()
	if data[5] != flagBOS {
		t.Errorf("expected BOS flag on first page, got %02x", data[5])
	}
	second := headerSize + 1 + 4
	if data[second+5] != flagEOS {
		t.Errorf("expected EOS flag on last page, got %02x", data[second+5])
	}
	if data[second+18] != 1 {
		t.Errorf("expected page sequence 1, got %d", data[second+18])
	}
}

func TestCorruptPageRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 1)
	if err := w.WritePacket([]byte("payload"), 0, true); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	r := NewReader(bytes.NewReader(data))
	if _, _, err := r.ReadPacket(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestNotOgg(t *testing.T) {
	r := NewReader(bytes.NewReader(bytes.Repeat([]byte("RIFF"), 10)))
	if _, _, err := r.ReadPacket(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}
