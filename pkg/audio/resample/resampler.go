// ABOUTME: Streaming resampler over canonical buffer sets
// ABOUTME: Pulls input blocks on demand and converts them to the output rate
package resample

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
)

// ErrInvalidRate is returned for non-positive sample rates
var ErrInvalidRate = errors.New("resample: invalid sample rate")

// Reader supplies input frames. It returns 0, io.EOF when exhausted.
type Reader interface {
	Read(set *bufferlist.Set, frames int) (int, error)
}

// Quality selects the conversion algorithm
type Quality int

const (
	// QualityHigh uses a band-limited polyphase filter
	QualityHigh Quality = iota
	// QualityLinear interpolates between neighbouring input frames
	QualityLinear
)

// Resampler converts a Reader's frames between sample rates
type Resampler struct {
	src        Reader
	inputRate  float64
	outputRate float64
	channels   int
	ratio      float64

	in    *bufferlist.Set
	inLen int
	// prev is the input frame before in[0]
	prev []float64
	// position of the next output frame; 0 is prev, k is in[k-1]
	position float64
	primed   bool
	eof      bool

	inViews  [][]float64
	outViews [][]float64

	// set for QualityHigh; nil selects linear interpolation
	filter *filterState
}

// New creates a high quality resampler reading from src in blocks of
// inputBlock frames
func New(src Reader, inputRate, outputRate float64, channels, inputBlock int) (*Resampler, error) {
	return NewWithQuality(src, inputRate, outputRate, channels, inputBlock, QualityHigh)
}

// NewWithQuality creates a resampler using the given conversion algorithm
func NewWithQuality(src Reader, inputRate, outputRate float64, channels, inputBlock int, q Quality) (*Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 || math.IsNaN(inputRate) || math.IsNaN(outputRate) {
		return nil, fmt.Errorf("%w: %g -> %g", ErrInvalidRate, inputRate, outputRate)
	}
	if inputBlock < 2 {
		inputBlock = 2
	}

	in, err := bufferlist.Allocate(audio.Canonical(inputRate, channels), inputBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate resampler input: %w", err)
	}

	r := &Resampler{
		src:        src,
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      inputRate / outputRate,
		in:         in,
		prev:       make([]float64, channels),
		inViews:    make([][]float64, channels),
		outViews:   make([][]float64, channels),
	}
	for ch := range r.inViews {
		r.inViews[ch] = in.Float64(ch)
	}

	if q == QualityHigh {
		f, err := newFilterState(inputRate, outputRate, channels, inputBlock)
		if err != nil {
			in.Free()
			return nil, err
		}
		r.filter = f
	}
	return r, nil
}

// Ratio returns input frames consumed per output frame
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// OutputFrames estimates the output length for inputFrames input frames
func (r *Resampler) OutputFrames(inputFrames int64) int64 {
	if inputFrames < 0 {
		return -1
	}
	return int64(math.Floor(float64(inputFrames) * r.outputRate / r.inputRate))
}

// Read produces up to frames output frames into set
func (r *Resampler) Read(set *bufferlist.Set, frames int) (int, error) {
	if set.Channels() != r.channels || !set.Format().IsCanonical() {
		return 0, fmt.Errorf("resample: output set has %d channels, need %d", set.Channels(), r.channels)
	}
	frames = min(frames, set.Capacity())
	for ch := range r.outViews {
		r.outViews[ch] = set.Float64(ch)
	}
	if r.filter != nil {
		return r.readFiltered(frames)
	}

	produced := 0
	for produced < frames {
		i := int(r.position)
		if !r.primed || i+1 > r.inLen {
			if err := r.refill(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return produced, err
			}
			continue
		}

		frac := r.position - float64(i)
		for ch := 0; ch < r.channels; ch++ {
			a := r.prev[ch]
			if i > 0 {
				a = r.inViews[ch][i-1]
			}
			b := r.inViews[ch][i]
			r.outViews[ch][produced] = a + (b-a)*frac
		}
		produced++
		r.position += r.ratio
	}

	if produced == 0 {
		return 0, io.EOF
	}
	return produced, nil
}

func (r *Resampler) refill() error {
	if r.eof {
		return io.EOF
	}
	if r.primed && r.inLen > 0 {
		for ch := range r.prev {
			r.prev[ch] = r.inViews[ch][r.inLen-1]
		}
		r.position -= float64(r.inLen)
	}

	n, err := r.src.Read(r.in, r.in.Capacity())
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.eof = true
		}
		r.inLen = 0
		return err
	}
	r.in.SetFrames(n)
	r.inLen = n
	if n == 0 {
		r.eof = true
		return io.EOF
	}

	if !r.primed && n > 0 {
		for ch := range r.prev {
			r.prev[ch] = r.inViews[ch][0]
		}
		r.position = 1
		r.primed = true
	}
	return nil
}

// Close releases the input buffer and filter state
func (r *Resampler) Close() {
	r.in.Free()
	r.filter = nil
}
