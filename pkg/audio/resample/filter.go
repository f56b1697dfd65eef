// ABOUTME: Band-limited resampling path backed by go-audio-resampling
// ABOUTME: Interleaves canonical blocks for the filter and trims its tail on flush
package resample

import (
	"errors"
	"fmt"
	"io"

	resampling "github.com/tphakala/go-audio-resampling"
)

// flushFrames is the amount of silence fed after the source ends so the
// filter releases its delayed output
const flushFrames = 8192

type filterState struct {
	rs          resampling.Resampler
	interleaved []float64

	// filtered frames not yet returned, per channel
	pending [][]float64
	head    int

	consumed  int64
	emitted   int64
	flushLeft int
}

func newFilterState(inputRate, outputRate float64, channels, inputBlock int) (*filterState, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  inputRate,
		OutputRate: outputRate,
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	return &filterState{
		rs:          rs,
		interleaved: make([]float64, inputBlock*channels),
		pending:     make([][]float64, channels),
		flushLeft:   (flushFrames + inputBlock - 1) / inputBlock,
	}, nil
}

// readFiltered fills outViews from the filter, pulling input as needed.
// Once the source is exhausted output stops at OutputFrames(consumed).
func (r *Resampler) readFiltered(frames int) (int, error) {
	f := r.filter
	produced := 0
	for produced < frames {
		if avail := len(f.pending[0]) - f.head; avail > 0 {
			n := min(frames-produced, avail)
			if r.eof {
				n = min(n, int(r.OutputFrames(f.consumed)-f.emitted))
				if n <= 0 {
					f.reset()
					break
				}
			}
			for ch, dst := range r.outViews {
				copy(dst[produced:produced+n], f.pending[ch][f.head:f.head+n])
			}
			f.head += n
			if f.head == len(f.pending[0]) {
				f.reset()
			}
			produced += n
			f.emitted += int64(n)
			continue
		}

		if r.eof {
			if f.emitted >= r.OutputFrames(f.consumed) || f.flushLeft == 0 {
				break
			}
			f.flushLeft--
			n := r.in.Capacity()
			for _, v := range r.inViews {
				clear(v[:n])
			}
			if err := r.feed(n); err != nil {
				return produced, err
			}
			continue
		}

		n, err := r.src.Read(r.in, r.in.Capacity())
		if err != nil && !errors.Is(err, io.EOF) {
			return produced, err
		}
		if n > 0 {
			f.consumed += int64(n)
			if err := r.feed(n); err != nil {
				return produced, err
			}
		}
		if n == 0 || err != nil {
			r.eof = true
		}
	}

	if produced == 0 {
		return 0, io.EOF
	}
	return produced, nil
}

// feed pushes n input frames through the filter
func (r *Resampler) feed(n int) error {
	f := r.filter
	buf := f.interleaved[:n*r.channels]
	for ch, src := range r.inViews {
		for i := 0; i < n; i++ {
			buf[i*r.channels+ch] = src[i]
		}
	}

	out, err := f.rs.Process(buf)
	if err != nil {
		return fmt.Errorf("resample error: %w", err)
	}
	frames := len(out) / r.channels
	for ch := range f.pending {
		for i := 0; i < frames; i++ {
			f.pending[ch] = append(f.pending[ch], out[i*r.channels+ch])
		}
	}
	return nil
}

func (f *filterState) reset() {
	for ch := range f.pending {
		f.pending[ch] = f.pending[ch][:0]
	}
	f.head = 0
}
