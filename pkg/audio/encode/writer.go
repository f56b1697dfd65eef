// ABOUTME: Writer interface and destination dispatch
// ABOUTME: Chooses a file writer from the destination extension
package encode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
)

var (
	ErrUnsupportedFormat = errors.New("encode: unsupported format")
	ErrFormatMismatch    = errors.New("encode: buffer set does not match writer format")
	ErrClosed            = errors.New("encode: writer closed")
)

// Writer accepts sequential blocks of canonical samples
type Writer interface {
	// Write appends the first frames frames of set
	Write(set *bufferlist.Set, frames int) error

	// Close flushes and finalises the file
	Close() error
}

// Options controls the stored sample format
type Options struct {
	// BitDepth is 16 or 24 for integer WAV output
	BitDepth int

	// Float selects 32-bit float WAV output
	Float bool

	// Bitrate is the Opus target bitrate in bits per second; 0 uses the codec default
	Bitrate int
}

// DefaultOptions returns 16-bit PCM output
func DefaultOptions() Options {
	return Options{BitDepth: 16}
}

// Create opens a writer for path. format is the canonical format of the
// blocks that will be written.
func Create(path string, format audio.Format, opts Options) (Writer, error) {
	if !format.IsCanonical() {
		return nil, fmt.Errorf("%w: input must be canonical, got %s", ErrUnsupportedFormat, format)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		w, err := CreateWAV(path, format, opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	case ".opus", ".ogg":
		w, err := CreateOpus(path, format, opts)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// StoredFormat returns the on-disk format Create would produce for path
func StoredFormat(path string, format audio.Format, opts Options) (audio.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return wavStoredFormat(format, opts)
	case ".opus", ".ogg":
		if format.SampleRate != OpusRate || format.Channels > 2 {
			return audio.Format{}, fmt.Errorf("%w: opus needs %d Hz with 1 or 2 channels", ErrUnsupportedFormat, OpusRate)
		}
		return audio.Format{SampleRate: OpusRate, Channels: format.Channels, BitsPerChannel: 32, Float: true, Interleaved: true}, nil
	default:
		return audio.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func checkSet(set *bufferlist.Set, format audio.Format, frames int) (int, error) {
	sf := set.Format()
	if !sf.IsCanonical() || sf.Channels != format.Channels {
		return 0, fmt.Errorf("%w: have %s, need %d channels", ErrFormatMismatch, sf, format.Channels)
	}
	if frames > set.Capacity() {
		frames = set.Capacity()
	}
	return max(frames, 0), nil
}
