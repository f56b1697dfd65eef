// ABOUTME: File-backed render graph
// ABOUTME: Chains decode, resample, gain and fades over canonical blocks
package graph

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
	"github.com/Sendspin/offline-render/pkg/audio/decode"
	"github.com/Sendspin/offline-render/pkg/audio/dsp"
	"github.com/Sendspin/offline-render/pkg/audio/resample"
)

// DefaultBlockFrames is the decode block size when Options leaves it unset
const DefaultBlockFrames = 4096

var ErrInvalidOptions = errors.New("graph: invalid options")

// Options configures the processing chain
type Options struct {
	// SampleRate is the output rate; 0 keeps the source rate
	SampleRate float64

	// GainDB is the master gain in decibels
	GainDB float64

	// FadeIn and FadeOut are ramp lengths in seconds
	FadeIn  float64
	FadeOut float64

	// BlockFrames sizes the decode buffer
	BlockFrames int
}

func (o Options) validate() error {
	switch {
	case o.SampleRate < 0 || math.IsNaN(o.SampleRate):
		return fmt.Errorf("%w: sample rate %g", ErrInvalidOptions, o.SampleRate)
	case o.FadeIn < 0 || o.FadeOut < 0:
		return fmt.Errorf("%w: negative fade", ErrInvalidOptions)
	case math.IsNaN(o.GainDB) || math.IsInf(o.GainDB, 0):
		return fmt.Errorf("%w: gain %g dB", ErrInvalidOptions, o.GainDB)
	case o.BlockFrames < 0:
		return fmt.Errorf("%w: block frames %d", ErrInvalidOptions, o.BlockFrames)
	}
	return nil
}

// FileGraph renders a decoded source through the processing chain
type FileGraph struct {
	src       decode.Source
	reader    resample.Reader
	resampler *resample.Resampler
	format    audio.Format
	total     int64
	gain      float64

	fadeIn        *dsp.Ramp
	fadeInFrames  int64
	fadeOut       *dsp.Ramp
	fadeOutStart  int64
	fadeOutFrames int64

	pos int64
}

// Open decodes path and builds the chain around it
func Open(path string, opts Options) (*FileGraph, error) {
	src, err := decode.Open(path)
	if err != nil {
		return nil, err
	}
	g, err := New(src, opts)
	if err != nil {
		src.Close()
		return nil, err
	}
	return g, nil
}

// New builds the chain around an open source. The graph takes ownership of src.
func New(src decode.Source, opts Options) (*FileGraph, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	block := opts.BlockFrames
	if block == 0 {
		block = DefaultBlockFrames
	}

	in := src.Format()
	g := &FileGraph{
		src:    src,
		reader: src,
		format: in,
		total:  src.Frames(),
		gain:   dsp.DecibelsToRatio(opts.GainDB),
	}

	if opts.SampleRate > 0 && opts.SampleRate != in.SampleRate {
		r, err := resample.New(src, in.SampleRate, opts.SampleRate, in.Channels, block)
		if err != nil {
			return nil, err
		}
		g.resampler = r
		g.reader = r
		g.format = in.WithSampleRate(opts.SampleRate)
		g.total = r.OutputFrames(g.total)
	}

	rate := g.format.SampleRate
	if n := int64(math.Round(opts.FadeIn * rate)); n > 0 {
		g.fadeInFrames = n
		g.fadeIn = dsp.NewRamp(0, 1/float64(n), block)
	}
	if n := int64(math.Round(opts.FadeOut * rate)); n > 0 && g.total > 0 {
		n = min(n, g.total)
		g.fadeOutFrames = n
		g.fadeOutStart = g.total - n
		g.fadeOut = dsp.NewRamp(1, -1/float64(n), block)
	}

	return g, nil
}

// Format returns the canonical output format
func (g *FileGraph) Format() audio.Format { return g.format }

// TotalFrames returns the expected output length, or -1 when unknown
func (g *FileGraph) TotalFrames() int64 { return g.total }

// Position returns the number of frames rendered so far
func (g *FileGraph) Position() int64 { return g.pos }

// FadeOutEnabled reports whether a fade-out is applied; it needs a known length
func (g *FileGraph) FadeOutEnabled() bool { return g.fadeOut != nil }

// Render fills the start of set with up to frames processed frames.
// It returns 0, io.EOF at the end of the source.
func (g *FileGraph) Render(ctx context.Context, set *bufferlist.Set, frames int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n, err := g.reader.Read(set, frames)
	if err != nil {
		return 0, err
	}

	dsp.ApplyGain(set, g.gain, n)
	g.applyFades(set, n)
	g.pos += int64(n)
	return n, nil
}

func (g *FileGraph) applyFades(set *bufferlist.Set, n int) {
	start, end := g.pos, g.pos+int64(n)

	if g.fadeIn != nil && start < g.fadeInFrames {
		k := int(min(end, g.fadeInFrames) - start)
		g.fadeIn.ApplyRange(set, 0, k)
	}

	if g.fadeOut == nil || end <= g.fadeOutStart {
		return
	}
	from := max(start, g.fadeOutStart)
	to := min(end, g.fadeOutStart+g.fadeOutFrames)
	if to > from {
		g.fadeOut.ApplyRange(set, int(from-start), int(to-from))
	}
	// Anything past the estimated end stays silent
	if end > to {
		past := max(to, start)
		set.Silence(int(past-start), int(end-past))
	}
}

// Close releases the source and resampler
func (g *FileGraph) Close() error {
	if g.resampler != nil {
		g.resampler.Close()
	}
	if err := g.src.Close(); err != nil {
		return fmt.Errorf("failed to close source: %w", err)
	}
	return nil
}
