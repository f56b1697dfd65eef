// ABOUTME: Render session lifecycle and background render loop
// ABOUTME: Drives graph blocks into the writer and reports progress
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Sendspin/offline-render/internal/logging"
	"github.com/Sendspin/offline-render/pkg/audio"
	"github.com/Sendspin/offline-render/pkg/audio/bufferlist"
	"github.com/Sendspin/offline-render/pkg/audio/encode"
	"github.com/Sendspin/offline-render/pkg/diag"
	"github.com/Sendspin/offline-render/pkg/timing"
)

// Graph produces rendered blocks in canonical format
type Graph interface {
	Format() audio.Format

	// TotalFrames is the expected output length, or -1 when unknown
	TotalFrames() int64

	// Render fills the start of set with up to frames frames and returns the
	// count. It returns io.EOF once the source is exhausted.
	Render(ctx context.Context, set *bufferlist.Set, frames int) (int, error)

	Close() error
}

// Writer accepts rendered blocks in file order
type Writer interface {
	Write(set *bufferlist.Set, frames int) error
	Close() error
}

// progressCeiling is the largest progress reported before completion
var progressCeiling = math.Nextafter(1, 0)

// Session renders one source into one destination
type Session struct {
	id          uuid.UUID
	source      string
	destination string
	cfg         config
	logger      *slog.Logger

	graph  Graph
	writer Writer
	work   *bufferlist.Set

	mu       sync.Mutex
	state    State
	progress float64
	frames   int64
	lastErr  error
	started  timing.HostTicks
	finished timing.HostTicks

	observer atomic.Pointer[func() Observer]
	// events is started by StartRendering
	events *dispatcher
	// deliverMu is held while an observer callback runs
	deliverMu sync.Mutex

	closed    atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Create validates the locators, builds the graph and destination writer and
// allocates the working buffers. On failure it returns a *SetupError and no
// session. The destination stays open until Close, which must be called for
// every session returned.
func Create(source, destination string, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if strings.TrimSpace(source) == "" {
		return nil, &SetupError{Op: "validate source", Err: ErrInvalidLocator}
	}
	if strings.TrimSpace(destination) == "" {
		return nil, &SetupError{Op: "validate destination", Err: ErrInvalidLocator}
	}
	if sameFile(source, destination) {
		return nil, &SetupError{Op: "validate destination", Locator: destination,
			Err: fmt.Errorf("%w: destination is the source", ErrInvalidLocator)}
	}
	if cfg.blockFrames <= 0 {
		return nil, &SetupError{Op: "validate block size",
			Err: fmt.Errorf("%w: %d frames", ErrAllocation, cfg.blockFrames)}
	}

	if cfg.graphOptions.SampleRate == 0 && isOpus(destination) {
		cfg.graphOptions.SampleRate = encode.OpusRate
	}
	if cfg.graphOptions.BlockFrames == 0 {
		cfg.graphOptions.BlockFrames = cfg.blockFrames
	}

	g, err := cfg.buildGraph(source, cfg.graphOptions)
	if err != nil {
		return nil, &SetupError{Op: "build graph", Locator: source, Err: err}
	}

	work, err := bufferlist.Allocate(g.Format(), cfg.blockFrames)
	if err != nil {
		g.Close()
		return nil, &SetupError{Op: "allocate working buffers", Err: err}
	}

	w, err := cfg.createWriter(destination, g.Format(), cfg.writerOptions)
	if err != nil {
		work.Free()
		g.Close()
		return nil, &SetupError{Op: "open destination", Locator: destination, Err: err}
	}

	id := uuid.New()
	s := &Session{
		id:          id,
		source:      source,
		destination: destination,
		cfg:         cfg,
		logger:      cfg.logger.With(slog.String("session", id.String())),
		graph:       g,
		writer:      w,
		work:        work,
		state:       Idle,
		done:        make(chan struct{}),
	}

	s.logger.Info("render session created",
		slog.String("source", source),
		slog.String("destination", destination),
		slog.String("format", g.Format().String()),
		slog.Int64("total_frames", g.TotalFrames()),
	)
	return s, nil
}

func sameFile(a, b string) bool {
	pa, errA := filepath.Abs(a)
	pb, errB := filepath.Abs(b)
	return errA == nil && errB == nil && pa == pb
}

func isOpus(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".opus" || ext == ".ogg"
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID { return s.id }

// Source returns the source locator
func (s *Session) Source() string { return s.source }

// Destination returns the destination locator
func (s *Session) Destination() string { return s.destination }

// Format returns the canonical format being rendered
func (s *Session) Format() audio.Format { return s.graph.Format() }

// TotalFrames returns the expected output length, or -1 when unknown
func (s *Session) TotalFrames() int64 { return s.graph.TotalFrames() }

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the fraction rendered, in [0,1]
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// FramesWritten returns the number of frames handed to the writer
func (s *Session) FramesWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// LastError returns the failure cause once the session has Failed
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Elapsed returns render time in seconds, measured on the host clock
func (s *Session) Elapsed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started == 0 {
		return 0
	}
	end := s.finished
	if end == 0 {
		end = timing.Now()
	}
	return timing.SecondsFromTicks(end - s.started)
}

// Done is closed when the render goroutine has exited
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setObserver(get func() Observer) {
	if get == nil {
		s.observer.Store(nil)
		return
	}
	s.observer.Store(&get)
}

// StartRendering begins rendering on a background goroutine and returns
// immediately. It is only valid from Idle.
func (s *Session) StartRendering() error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return fmt.Errorf("%w: session closed", ErrInvalidState)
	}
	if s.state != Idle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, state)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.events = newDispatcher(s.deliver)
	s.state = Rendering
	s.started = timing.Now()
	s.mu.Unlock()

	s.logger.Info("render started", slog.Int("block_frames", s.cfg.blockFrames))
	go s.run(ctx)
	return nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.releaseWork()

	check := s.cfg.checker
	block := s.cfg.blockFrames
	total := s.graph.TotalFrames()
	sampler := logging.NewProgressSampler(10)

	var written int64
	for {
		if ctx.Err() != nil {
			s.logger.Info("render cancelled", slog.Int64("frames", written))
			return
		}

		n, err := s.graph.Render(ctx, s.work, block)
		eof := errors.Is(err, io.EOF)
		if eof {
			err = nil
		}
		if err != nil && ctx.Err() != nil {
			s.logger.Info("render cancelled", slog.Int64("frames", written))
			return
		}
		if !check.Check(err, "render block") {
			s.fail(&GraphError{Op: "render block", Code: diag.CodeOf(err), Err: err})
			return
		}

		if n > 0 {
			s.work.SetFrames(n)
			if err := s.writer.Write(s.work, n); !check.Check(err, "write block") {
				s.fail(&GraphError{Op: "write block", Code: diag.CodeOf(err), Err: err})
				return
			}
			written += int64(n)

			p := s.advance(written, total)
			if sampler.ShouldLog(p) {
				s.logger.Info("render progress",
					slog.Float64("progress", p),
					slog.Int64("frames", written))
			}
		}

		if eof {
			break
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := s.writer.Close(); !check.Check(err, "finalise destination") {
		s.fail(&GraphError{Op: "finalise destination", Code: diag.CodeOf(err), Err: err})
		return
	}
	s.complete(written)
}

// advance records written frames and emits a Progress event
func (s *Session) advance(written, total int64) float64 {
	s.mu.Lock()
	p := s.progress
	if total > 0 {
		p = max(p, min(float64(written)/float64(total), progressCeiling))
	}
	s.progress = p
	s.frames = written
	s.mu.Unlock()

	s.emit(Event{Kind: EventProgress, Progress: p, Frames: written})
	return p
}

func (s *Session) complete(written int64) {
	s.mu.Lock()
	s.state = Completed
	s.progress = 1
	s.frames = written
	s.finished = timing.Now()
	elapsed := timing.SecondsFromTicks(s.finished - s.started)
	s.mu.Unlock()

	s.logger.Info("render completed",
		slog.Int64("frames", written),
		slog.Float64("elapsed_seconds", elapsed))
	s.emit(Event{Kind: EventCompleted, Progress: 1, Frames: written})
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = Failed
	s.lastErr = err
	s.finished = timing.Now()
	p, written := s.progress, s.frames
	s.mu.Unlock()

	s.logger.Error("render failed", slog.Any("error", err))
	s.emit(Event{Kind: EventFailed, Progress: p, Frames: written, Err: err})
}

func (s *Session) emit(e Event) {
	if s.closed.Load() {
		return
	}
	s.events.push(e)
}

// closing reports whether Close has begun
func (s *Session) closing() bool {
	return s.closed.Load()
}

func (s *Session) deliver(e Event) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.closing() {
		return
	}
	get := s.observer.Load()
	if get == nil {
		return
	}
	if o := (*get)(); o != nil {
		o.OnEvent(s, e)
	}
}

func (s *Session) releaseWork() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.work.Free()
}

// Close cancels an in-flight render at the next block boundary, waits for the
// render goroutine and releases the graph and writer. No events are delivered
// once Close has begun; a callback already in progress on another goroutine
// is waited for. Close is safe to call more than once and from an observer
// callback.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.mu.Lock()
		cancel, events := s.cancel, s.events
		s.mu.Unlock()

		if events != nil {
			events.shutdown()
			if !onDispatcher() {
				// Waits out a callback in progress
				s.deliverMu.Lock()
				s.deliverMu.Unlock()
			}
		}

		if cancel != nil {
			cancel()
			<-s.done
		} else {
			s.releaseWork()
			close(s.done)
		}

		// Closing a finished writer is a no-op for the bundled writers
		err = errors.Join(s.writer.Close(), s.graph.Close())
		if err != nil {
			s.logger.Warn("error releasing session", slog.Any("error", err))
		}
	})
	return err
}
