// ABOUTME: Source interface and file-extension dispatch
// ABOUTME: Common contract for all audio file readers
package decode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
)

var (
	ErrUnsupportedFormat = errors.New("decode: unsupported format")
	ErrFormatMismatch    = errors.New("decode: buffer set does not match source format")
)

// Source delivers decoded audio as canonical float samples
type Source interface {
	// Format returns the canonical format of the decoded audio
	Format() audio.Format

	// Frames returns the total frame count, or -1 when unknown
	Frames() int64

	// Read decodes up to frames frames into the start of set and returns the
	// number read. It returns 0, io.EOF once the source is exhausted.
	Read(set *bufferlist.Set, frames int) (int, error)

	// Close releases the underlying file
	Close() error
}

// Open opens path with the reader matching its extension
func Open(path string) (Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		s, err := OpenWAV(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ".mp3":
		s, err := OpenMP3(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ".flac":
		s, err := OpenFLAC(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case ".opus", ".ogg":
		s, err := OpenOpus(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Extensions lists the file extensions Open accepts
func Extensions() []string {
	return []string{".wav", ".wave", ".mp3", ".flac", ".opus", ".ogg"}
}

// checkSet validates that set can receive frames frames of format and
// returns the clamped frame count.
func checkSet(set *bufferlist.Set, format audio.Format, frames int) (int, error) {
	sf := set.Format()
	if !sf.IsCanonical() || sf.Channels != format.Channels {
		return 0, fmt.Errorf("%w: have %s, need %d channels", ErrFormatMismatch, sf, format.Channels)
	}
	if frames > set.Capacity() {
		frames = set.Capacity()
	}
	return frames, nil
}
