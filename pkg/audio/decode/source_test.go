// ABOUTME: Tests for source dispatch
// ABOUTME: Tests extension handling and open failures for each reader
package decode

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenUnsupportedExtension(t *testing.T) {
	_, err := Open("track.aiff")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range Extensions() {
		path := filepath.Join(dir, "missing"+ext)
		if _, err := Open(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s: expected not-exist error, got %v", ext, err)
		}
	}
}

func TestOpenGarbage(t *testing.T) {
	garbage := []byte("definitely not audio data, just some text padding it out to a reasonable size")
	for _, name := range []string{"junk.flac", "junk.opus", "junk.wav"} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, garbage)
			src, err := Open(path)
			if err == nil {
				src.Close()
				t.Fatal("expected error for garbage input")
			}
		})
	}
}

func TestOpenIsCaseInsensitive(t *testing.T) {
	path := writeFile(t, "LOUD.WAV", buildWAV(wavFormatPCM, 48000, 1, 16, []byte{0, 0}))
	src, err := Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	src.Close()
}
